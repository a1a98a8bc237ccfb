package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SHIPCHECK_NETWORK", "SHIPCHECK_RPC_URL", "SHIPCHECK_PRIVATE_KEY", "SHIPCHECK_CHAIN_ID",
		"SHIPCHECK_CONTRACT", "SHIPCHECK_JOURNAL", "SHIPCHECK_METADATA", "DATABASE_URL",
		"ANVIL_RPC_URL", "ANVIL_PRIVATE_KEY", "SEPOLIA_RPC_URL", "SEPOLIA_PRIVATE_KEY",
		"SHIPCHECK_ADDRESS_VAR", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func resolvedDefault(t *testing.T) *Config {
	t.Helper()
	cfg := Default()
	require.NoError(t, cfg.ResolveNetwork(BuiltinProfiles()))
	return cfg
}

func TestDefault(t *testing.T) {
	clearEnv(t)
	cfg := resolvedDefault(t)

	assert.Equal(t, "http://localhost:8545", cfg.Network.RPCURL)
	assert.Zero(t, cfg.Network.ChainID, "anvil accepts whatever chain id it reports")
	assert.Equal(t, AnvilDevKey, cfg.Network.PrivateKey)
	assert.Equal(t, "IdentityRegistry", cfg.Contract.Name)
	assert.Equal(t, "register", cfg.Invoke.Method)
	assert.Equal(t, []string{"category=compute", "type=a2a-trader"}, cfg.Invoke.Metadata)
	assert.Equal(t, "event-lenient", cfg.Identifier.Strategy)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.FinalizationTimeout)
	require.NotNil(t, cfg.Compiler.ViaIR)
	assert.True(t, *cfg.Compiler.ViaIR)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ProjectFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	content := `
[network]
name = "sepolia"
rpc_url = "https://rpc.sepolia.example"

[contract]
name = "AgentRegistry"
args = ["0x0000000000000000000000000000000000000001"]

[invoke]
metadata = ["category=storage"]
metadata_encoding = "hex"

[identifier]
strategy = "event"

[pipeline]
finalization_timeout = "45s"
confirmations = 3

[journal]
type = "sqlite"
path = "runs.db"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shipcheck.toml"), []byte(content), 0644))

	cfg, path, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shipcheck.toml"), path)

	assert.Equal(t, "sepolia", cfg.Network.Name)
	assert.Equal(t, "AgentRegistry", cfg.Contract.Name)
	assert.Len(t, cfg.Contract.Args, 1)
	assert.Equal(t, []string{"category=storage"}, cfg.Invoke.Metadata)
	assert.Equal(t, "hex", cfg.Invoke.Encoding)
	assert.Equal(t, "event", cfg.Identifier.Strategy)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.FinalizationTimeout)
	assert.Equal(t, uint64(3), cfg.Pipeline.Confirmations)
	assert.Equal(t, "sqlite", cfg.Journal.Type)

	// untouched keys keep defaults
	assert.Equal(t, "register", cfg.Invoke.Method)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.PollInterval)
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)
	cfg, path, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "anvil", cfg.Network.Name)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	clearEnv(t)
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.toml"), "")
	assert.Error(t, err)
}

func TestLoad_UnknownKey(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "shipcheck.toml")
	require.NoError(t, os.WriteFile(path, []byte("[network]\nrpc = \"x\"\n"), 0644))

	_, _, err := Load(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network.rpc")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHIPCHECK_RPC_URL", "http://10.0.0.5:8545")
	t.Setenv("SHIPCHECK_CONTRACT", "Other")
	t.Setenv("SHIPCHECK_METADATA", "a=1, b=2")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("SHIPCHECK_ADDRESS_VAR", "REGISTRY_ADDRESS")

	cfg, _, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8545", cfg.Network.RPCURL)
	assert.Equal(t, "Other", cfg.Contract.Name)
	assert.Equal(t, []string{"a=1", "b=2"}, cfg.Invoke.Metadata)
	assert.Equal(t, "postgres", cfg.Journal.Type)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "REGISTRY_ADDRESS", cfg.Contract.AddressVar)
}

func TestResolveNetwork(t *testing.T) {
	t.Run("anvil env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ANVIL_RPC_URL", "http://anvil:8545")
		cfg := resolvedDefault(t)
		assert.Equal(t, "http://anvil:8545", cfg.Network.RPCURL)
	})

	t.Run("explicit url wins over profile", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ANVIL_RPC_URL", "http://anvil:8545")
		cfg := Default()
		cfg.Network.RPCURL = "http://explicit:8545"
		require.NoError(t, cfg.ResolveNetwork(BuiltinProfiles()))
		assert.Equal(t, "http://explicit:8545", cfg.Network.RPCURL)
	})

	t.Run("sepolia requires url", func(t *testing.T) {
		clearEnv(t)
		cfg := Default()
		cfg.Network.Name = "sepolia"
		err := cfg.ResolveNetwork(BuiltinProfiles())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SEPOLIA_RPC_URL")
	})

	t.Run("sepolia from env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SEPOLIA_RPC_URL", "https://sepolia.example")
		t.Setenv("SEPOLIA_PRIVATE_KEY", "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d")
		cfg := Default()
		cfg.Network.Name = "sepolia"
		require.NoError(t, cfg.ResolveNetwork(BuiltinProfiles()))
		assert.Equal(t, int64(11155111), cfg.Network.ChainID)
		assert.Equal(t, "https://sepolia.example", cfg.Network.RPCURL)
		assert.NotEqual(t, AnvilDevKey, cfg.Network.PrivateKey)
	})

	t.Run("unknown name", func(t *testing.T) {
		clearEnv(t)
		cfg := Default()
		cfg.Network.Name = "mainnet"
		assert.Error(t, cfg.ResolveNetwork(BuiltinProfiles()))

		cfg.Network.RPCURL = "https://mainnet.example"
		assert.NoError(t, cfg.ResolveNetwork(BuiltinProfiles()))
	})
}

func TestLoadProfiles(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "networks.yaml")
	content := `networks:
  base-sepolia:
    rpc_url: https://base-sepolia.example
    chain_id: 84532
    private_key_env: BASE_KEY
    rpc_requests_per_second: 5
  anvil:
    rpc_url: http://devbox:8545
    chain_id: 31337
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"anvil", "base-sepolia", "sepolia"}, ProfileNames(profiles))
	assert.Equal(t, "http://devbox:8545", profiles["anvil"].RPCURL)
	assert.Equal(t, 5.0, profiles["base-sepolia"].RequestsPerSecond)

	missing, err := LoadProfiles(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Len(t, missing, 2)

	require.NoError(t, os.WriteFile(path, []byte("networks: [\n"), 0644))
	_, err = LoadProfiles(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad url", func(c *Config) { c.Network.RPCURL = "localhost:8545" }, "network.rpc_url"},
		{"bad key", func(c *Config) { c.Network.PrivateKey = "0x1234" }, "network.private_key"},
		{"empty key allowed", func(c *Config) { c.Network.PrivateKey = "" }, ""},
		{"negative chain", func(c *Config) { c.Network.ChainID = -1 }, "network.chain_id"},
		{"no contract", func(c *Config) { c.Contract.Name = "" }, "contract.name"},
		{"bad builder", func(c *Config) { c.Contract.Builder = "truffle" }, "contract.builder"},
		{"bad address var", func(c *Config) { c.Contract.AddressVar = "REGISTRY-ADDRESS" }, "contract.address_var"},
		{"address var", func(c *Config) { c.Contract.AddressVar = "REGISTRY_ADDRESS" }, ""},
		{"bad encoding", func(c *Config) { c.Invoke.Encoding = "base64" }, "invoke.metadata_encoding"},
		{"bad entry", func(c *Config) { c.Invoke.Metadata = []string{"novalue"} }, "invoke.metadata"},
		{"bad strategy", func(c *Config) { c.Identifier.Strategy = "guess" }, "identifier"},
		{"bad event", func(c *Config) {
			c.Identifier.Strategy = "event"
			c.Identifier.EventSignature = "Registered("
		}, "identifier"},
		{"zero timeout", func(c *Config) { c.Pipeline.FinalizationTimeout = 0 }, "pipeline.finalization_timeout"},
		{"low multiplier", func(c *Config) { c.Pipeline.GasMultiplier = 0.5 }, "pipeline.gas_multiplier"},
		{"bad fee", func(c *Config) { c.Pipeline.MaxFeePerGas = "1gwei" }, "pipeline.max_fee_per_gas"},
		{"bad compiler", func(c *Config) { c.Compiler.Version = "0.8" }, "compiler.version"},
		{"sqlite no path", func(c *Config) {
			c.Journal.Type = "sqlite"
			c.Journal.Path = ""
		}, "journal.path"},
		{"postgres no url", func(c *Config) { c.Journal.Type = "postgres" }, "journal.url"},
		{"bad journal", func(c *Config) { c.Journal.Type = "mongo" }, "journal.type"},
		{"bad push url", func(c *Config) { c.Metrics.PushURL = "::" }, "metrics.pushgateway_url"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg := resolvedDefault(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Network.RPCURL = ""
	cfg.Contract.Name = ""
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network.rpc_url")
	assert.Contains(t, err.Error(), "contract.name")
	assert.Contains(t, err.Error(), "logging.format")
}

func TestParseWei(t *testing.T) {
	v, err := ParseWei("")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ParseWei("30000000000")
	require.NoError(t, err)
	assert.Equal(t, "30000000000", v.String())

	_, err = ParseWei("-1")
	assert.Error(t, err)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(not set)", MaskSecret(""))
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "0xac09...ff80", MaskSecret(AnvilDevKey))
}
