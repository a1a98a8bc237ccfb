package evm

import (
	"bytes"
	"context"
	"encoding/hex"
	"regexp"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pendergraft/shipcheck/internal/faults"
)

// CBOR metadata marker (Solidity >=0.6.0) - "ipfs" in CBOR
var metadataMarker = []byte{0xa2, 0x64, 0x69, 0x70, 0x66, 0x73}

// Library placeholder pattern: __$<34 hex chars>$__
var libraryPlaceholder = regexp.MustCompile(`__\$[a-f0-9]{34}\$__`)

// Match types reported by CompareBytecode
const (
	MatchFull    = "full"
	MatchPartial = "partial"
	MatchNone    = "none"
)

// CodeReader reads runtime code. *Network implements it.
type CodeReader interface {
	Bytecode(ctx context.Context, addr common.Address) ([]byte, error)
}

// HasCode reports whether runtime code is present. Both a zero-length read and
// the decoded "0x" sentinel are empty.
func HasCode(code []byte) bool {
	return len(code) > 0
}

// VerifyCode reads the code at addr and fails with a Verification fault when
// there is none. Read failures keep their own classification.
func VerifyCode(ctx context.Context, r CodeReader, addr common.Address) ([]byte, error) {
	code, err := r.Bytecode(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !HasCode(code) {
		return nil, faults.Newf(faults.Verification, "verify "+addr.Hex(), "no code at address")
	}
	return code, nil
}

// MatchResult contains bytecode comparison results
type MatchResult struct {
	Match     bool   // Whether the bytecode matches
	MatchType string // "full", "partial", "none"
	Message   string // Human-readable explanation
}

// StripMetadata removes the CBOR metadata appended to bytecode
func StripMetadata(bytecode []byte) []byte {
	// Find last occurrence of metadata marker
	idx := bytes.LastIndex(bytecode, metadataMarker)
	if idx == -1 {
		return bytecode // No metadata found
	}
	// Back up to find the length prefix (2 bytes before marker)
	if idx >= 2 {
		return bytecode[:idx-2]
	}
	return bytecode
}

// CompareBytecode compares deployed runtime code to the artifact's deployed bytecode
func CompareBytecode(deployed, artifact []byte) *MatchResult {
	// Handle hex-encoded bytecode
	if len(artifact) > 2 && artifact[0] == '0' && artifact[1] == 'x' {
		decoded, err := hex.DecodeString(string(artifact[2:]))
		if err == nil {
			artifact = decoded
		}
	}

	if bytes.Equal(deployed, artifact) {
		return &MatchResult{
			Match:     true,
			MatchType: MatchFull,
			Message:   "Bytecode matches exactly including metadata",
		}
	}

	if bytes.Equal(StripMetadata(deployed), StripMetadata(artifact)) {
		return &MatchResult{
			Match:     true,
			MatchType: MatchPartial,
			Message:   "Executable code matches, metadata differs (different source paths, comments, or build environment)",
		}
	}

	return &MatchResult{
		Match:     false,
		MatchType: MatchNone,
		Message:   "Bytecode does not match (immutables, unlinked libraries or a different build)",
	}
}

// HasLibraryPlaceholders checks if bytecode contains library placeholders
func HasLibraryPlaceholders(bytecode []byte) bool {
	return libraryPlaceholder.Match(bytecode)
}
