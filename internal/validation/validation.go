// Package validation provides input validation for shipcheck configuration.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/mod/semver"
)

// ValidateAddress validates an Ethereum address
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	if !isHex(addr[2:]) {
		return errors.New("invalid address: contains non-hex characters")
	}
	return nil
}

// ValidateHash validates a 32-byte hex word (transaction hash or event topic)
func ValidateHash(h string) error {
	if len(h) != 66 {
		return errors.New("invalid hash length: must be 66 characters (0x + 64 hex)")
	}
	if !strings.HasPrefix(h, "0x") {
		return errors.New("invalid hash: must start with 0x")
	}
	if !isHex(h[2:]) {
		return errors.New("invalid hash: contains non-hex characters")
	}
	return nil
}

// ValidatePrivateKey validates a hex-encoded secp256k1 private key (0x prefix optional)
func ValidatePrivateKey(key string) error {
	key = strings.TrimPrefix(strings.TrimSpace(key), "0x")
	if key == "" {
		return errors.New("private key is empty")
	}
	if len(key) != 64 {
		return errors.New("invalid private key length: must be 64 hex characters")
	}
	if !isHex(key) {
		return errors.New("invalid private key: contains non-hex characters")
	}
	return nil
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID int64) error {
	if chainID <= 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}

// ValidateRPCURL validates a JSON-RPC endpoint URL
func ValidateRPCURL(raw string) error {
	if raw == "" {
		return errors.New("RPC URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("invalid RPC URL: " + err.Error())
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return errors.New("invalid RPC URL: scheme must be http, https, ws or wss")
	}
	if u.Host == "" {
		return errors.New("invalid RPC URL: missing host")
	}
	return nil
}

// ValidateCompilerVersion validates a solc version such as "0.8.24" or "0.8.24+commit.e11b9ed9"
func ValidateCompilerVersion(v string) error {
	normalized := NormalizeVersion(v)
	if normalized == "" {
		return errors.New("compiler version cannot be empty")
	}
	if !semver.IsValid("v" + normalized) {
		return errors.New("invalid compiler version: must be in format X.Y.Z")
	}
	// semver accepts "0.8"; solc versions always carry a patch number
	mainPart := strings.SplitN(strings.SplitN(normalized, "+", 2)[0], "-", 2)[0]
	if strings.Count(mainPart, ".") < 2 {
		return errors.New("invalid compiler version: must be in format X.Y.Z (major.minor.patch)")
	}
	return nil
}

// NormalizeVersion normalizes a version string (strips leading 'v')
func NormalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// CompareVersions compares two versions, ignoring build metadata
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareVersions(v1, v2 string) int {
	n1 := "v" + NormalizeVersion(v1)
	n2 := "v" + NormalizeVersion(v2)
	return semver.Compare(n1, n2)
}

// ValidateEnvVarName validates a shell variable name usable after "export"
func ValidateEnvVarName(name string) error {
	if name == "" {
		return errors.New("variable name is empty")
	}
	for i, c := range name {
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
		isDigit := c >= '0' && c <= '9'
		if !isLetter && (!isDigit || i == 0) {
			return fmt.Errorf("invalid variable name %q: use letters, digits and underscores, not starting with a digit", name)
		}
	}
	return nil
}

func isHex(s string) bool {
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}
