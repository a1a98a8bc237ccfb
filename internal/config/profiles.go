package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// AnvilDevKey is the first well-known anvil/hardhat development account. It only
// holds funds on local development chains.
const AnvilDevKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// Profile is a named network. Env fields name variables consulted before the
// literal values.
type Profile struct {
	RPCURL            string  `yaml:"rpc_url"`
	RPCURLEnv         string  `yaml:"rpc_url_env,omitempty"`
	ChainID           int64   `yaml:"chain_id"`
	PrivateKey        string  `yaml:"private_key,omitempty"`
	PrivateKeyEnv     string  `yaml:"private_key_env,omitempty"`
	RequestsPerSecond float64 `yaml:"rpc_requests_per_second,omitempty"`
}

// profilesFile is the layout of ~/.shipcheck/networks.yaml
type profilesFile struct {
	Networks map[string]Profile `yaml:"networks"`
}

// BuiltinProfiles returns the profiles available without any file
func BuiltinProfiles() map[string]Profile {
	return map[string]Profile{
		// no chain id: a forked anvil reports the upstream one
		"anvil": {
			RPCURL:        "http://localhost:8545",
			RPCURLEnv:     "ANVIL_RPC_URL",
			PrivateKey:    AnvilDevKey,
			PrivateKeyEnv: "ANVIL_PRIVATE_KEY",
		},
		"sepolia": {
			RPCURLEnv:     "SEPOLIA_RPC_URL",
			ChainID:       11155111,
			PrivateKeyEnv: "SEPOLIA_PRIVATE_KEY",
		},
	}
}

// ConfigDir returns ~/.shipcheck
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shipcheck"
	}
	return filepath.Join(home, ".shipcheck")
}

// DefaultProfilesPath returns ~/.shipcheck/networks.yaml
func DefaultProfilesPath() string {
	return filepath.Join(ConfigDir(), "networks.yaml")
}

// LoadProfiles returns the built-in profiles merged with those in the YAML file at
// path. A missing file is not an error; file entries replace built-ins of the
// same name.
func LoadProfiles(path string) (map[string]Profile, error) {
	profiles := BuiltinProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return profiles, nil
		}
		return nil, err
	}

	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
	}
	for name, p := range file.Networks {
		profiles[name] = p
	}
	return profiles, nil
}

// ProfileNames returns the profile names sorted
func ProfileNames(profiles map[string]Profile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolved returns the profile with its env variables applied
func (p Profile) Resolved() Profile {
	if p.RPCURLEnv != "" {
		p.RPCURL = getEnv(p.RPCURLEnv, p.RPCURL)
	}
	if p.PrivateKeyEnv != "" {
		p.PrivateKey = getEnv(p.PrivateKeyEnv, p.PrivateKey)
	}
	return p
}

// ResolveNetwork fills endpoint settings not set explicitly from the named
// profile. A network with an explicit RPC URL needs no profile; an unknown name
// without one is an error.
func (c *Config) ResolveNetwork(profiles map[string]Profile) error {
	n := &c.Network
	p, ok := profiles[n.Name]
	if !ok {
		if n.RPCURL == "" {
			return fmt.Errorf("unknown network %q and no rpc_url set", n.Name)
		}
		return nil
	}

	p = p.Resolved()
	if n.RPCURL == "" {
		n.RPCURL = p.RPCURL
	}
	if n.ChainID == 0 {
		n.ChainID = p.ChainID
	}
	if n.PrivateKey == "" {
		n.PrivateKey = p.PrivateKey
	}
	if n.RequestsPerSecond == 0 {
		n.RequestsPerSecond = p.RequestsPerSecond
	}

	if n.RPCURL == "" {
		if p.RPCURLEnv != "" {
			return fmt.Errorf("network %q: rpc url not set (set %s)", n.Name, p.RPCURLEnv)
		}
		return fmt.Errorf("network %q: rpc url not set", n.Name)
	}
	return nil
}
