// Package config loads the explicit configuration a shipcheck run is started with.
//
// Values are layered: built-in defaults, then the project file (shipcheck.toml),
// then environment variables, then CLI flags applied by the caller. Network
// profiles fill whatever endpoint settings are still missing; see ResolveNetwork.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ProjectConfigFiles is the search order for the project config file
var ProjectConfigFiles = []string{"shipcheck.toml", ".shipcheck.toml"}

// Config holds all configuration for one run
type Config struct {
	Network    NetworkConfig    `toml:"network"`
	Contract   ContractConfig   `toml:"contract"`
	Invoke     InvokeConfig     `toml:"invoke"`
	Identifier IdentifierConfig `toml:"identifier"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Verify     VerifyConfig     `toml:"verify"`
	Compiler   CompilerConfig   `toml:"compiler"`
	Journal    JournalConfig    `toml:"journal"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Logging    LoggingConfig    `toml:"logging"`
}

// NetworkConfig selects the endpoint and signing identity
type NetworkConfig struct {
	Name              string  `toml:"name"`
	RPCURL            string  `toml:"rpc_url"`
	ChainID           int64   `toml:"chain_id"` // 0 = take the profile's, or accept any
	PrivateKey        string  `toml:"private_key"`
	RequestsPerSecond float64 `toml:"rpc_requests_per_second"`
}

// ContractConfig names the artifact to deploy
type ContractConfig struct {
	Name         string   `toml:"name"`
	Args         []string `toml:"args"`
	ArtifactsDir string   `toml:"artifacts_dir"`
	Builder      string   `toml:"builder"`     // "auto", "foundry", "hardhat"
	AddressVar   string   `toml:"address_var"` // follow-up variable for the address
}

// InvokeConfig describes the test invocation
type InvokeConfig struct {
	Method   string   `toml:"method"`
	TokenURI string   `toml:"token_uri"`
	Args     []string `toml:"args"`     // after the token URI, converted per the method ABI
	Metadata []string `toml:"metadata"` // "key=value", order preserved
	Encoding string   `toml:"metadata_encoding"`
}

// IdentifierConfig selects how the identifier is recovered
type IdentifierConfig struct {
	Strategy       string `toml:"strategy"` // "event", "event-lenient", "followup"
	EventSignature string `toml:"event_signature"`
	FollowupMethod string `toml:"followup_method"`
}

// PipelineConfig bounds waits and prices transactions
type PipelineConfig struct {
	FinalizationTimeout  time.Duration `toml:"finalization_timeout"`
	PollInterval         time.Duration `toml:"poll_interval"`
	Confirmations        uint64        `toml:"confirmations"`
	GasLimit             uint64        `toml:"gas_limit"`      // 0 = estimate
	GasMultiplier        float64       `toml:"gas_multiplier"` // applied to estimates
	MaxFeePerGas         string        `toml:"max_fee_per_gas"`
	MaxPriorityFeePerGas string        `toml:"max_priority_fee_per_gas"`
}

// VerifyConfig holds the optional post-deploy checks
type VerifyConfig struct {
	MatchArtifact bool `toml:"match_artifact"`
}

// CompilerConfig is the expected compiler profile of the artifact
type CompilerConfig struct {
	Version       string `toml:"version"`
	EVMVersion    string `toml:"evm_version"`
	OptimizerRuns int    `toml:"optimizer_runs"`
	ViaIR         *bool  `toml:"via_ir"`
	Strict        bool   `toml:"strict"`
}

// JournalConfig holds run journal settings
type JournalConfig struct {
	Type string `toml:"type"` // "none", "sqlite" or "postgres"
	Path string `toml:"path"`
	URL  string `toml:"url"`
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	PushURL string `toml:"pushgateway_url"`
	Job     string `toml:"job"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// Default returns the built-in configuration: a registration against the local
// anvil profile.
func Default() *Config {
	viaIR := true
	return &Config{
		Network: NetworkConfig{
			Name: "anvil",
		},
		Contract: ContractConfig{
			Name:    "IdentityRegistry",
			Builder: "auto",
		},
		Invoke: InvokeConfig{
			Method:   "register",
			TokenURI: "http://localhost:8000/.well-known/agent-card.json",
			Metadata: []string{"category=compute", "type=a2a-trader"},
			Encoding: "utf8",
		},
		Identifier: IdentifierConfig{
			Strategy:       "event-lenient",
			EventSignature: "Registered(uint256 indexed agentId, string tokenURI, address indexed owner)",
			FollowupMethod: "totalAgents()",
		},
		Pipeline: PipelineConfig{
			FinalizationTimeout: 2 * time.Minute,
			PollInterval:        2 * time.Second,
			Confirmations:       1,
			GasMultiplier:       1.2,
		},
		Compiler: CompilerConfig{
			Version:       "0.8.24",
			EVMVersion:    "shanghai",
			OptimizerRuns: 200,
			ViaIR:         &viaIR,
		},
		Journal: JournalConfig{
			Type: "none",
			Path: "./data/shipcheck.db",
		},
		Metrics: MetricsConfig{
			Job: "shipcheck",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the project file and the
// environment. An explicit path must exist; otherwise ProjectConfigFiles are
// searched in dir and a missing file is not an error. The returned path is the
// file that was read, or "".
func Load(path, dir string) (*Config, string, error) {
	cfg := Default()

	if path == "" {
		found, err := FindProjectFile(dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, "", err
		}
		path = found
	}
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, path, err
		}
	}

	cfg.applyEnv()
	return cfg, path, nil
}

// FindProjectFile returns the first project config file present in dir
func FindProjectFile(dir string) (string, error) {
	for _, name := range ProjectConfigFiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", os.ErrNotExist
}

// decodeFile overlays a TOML file onto cfg. Keys absent from the file keep their
// current values.
func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return fmt.Errorf("parsing TOML %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("parsing TOML %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// applyEnv overrides values from SHIPCHECK_* and the well-known variables
func (c *Config) applyEnv() {
	c.Network.Name = getEnv("SHIPCHECK_NETWORK", c.Network.Name)
	c.Network.RPCURL = getEnv("SHIPCHECK_RPC_URL", c.Network.RPCURL)
	c.Network.PrivateKey = getEnv("SHIPCHECK_PRIVATE_KEY", c.Network.PrivateKey)
	c.Network.ChainID = int64(getEnvInt("SHIPCHECK_CHAIN_ID", int(c.Network.ChainID)))

	c.Contract.Name = getEnv("SHIPCHECK_CONTRACT", c.Contract.Name)
	c.Contract.ArtifactsDir = getEnv("SHIPCHECK_ARTIFACTS_DIR", c.Contract.ArtifactsDir)
	c.Contract.Builder = getEnv("SHIPCHECK_BUILDER", c.Contract.Builder)
	c.Contract.AddressVar = getEnv("SHIPCHECK_ADDRESS_VAR", c.Contract.AddressVar)

	c.Invoke.TokenURI = getEnv("SHIPCHECK_TOKEN_URI", c.Invoke.TokenURI)
	c.Invoke.Encoding = getEnv("SHIPCHECK_METADATA_ENCODING", c.Invoke.Encoding)
	c.Invoke.Metadata = getEnvStringSlice("SHIPCHECK_METADATA", c.Invoke.Metadata)

	c.Identifier.Strategy = getEnv("SHIPCHECK_IDENTIFIER_STRATEGY", c.Identifier.Strategy)

	c.Pipeline.FinalizationTimeout = getEnvDuration("SHIPCHECK_FINALIZATION_TIMEOUT", c.Pipeline.FinalizationTimeout)
	c.Pipeline.Confirmations = uint64(getEnvInt("SHIPCHECK_CONFIRMATIONS", int(c.Pipeline.Confirmations)))

	c.Journal.Type = getEnv("SHIPCHECK_JOURNAL", c.Journal.Type)
	c.Journal.Path = getEnv("SHIPCHECK_JOURNAL_PATH", c.Journal.Path)
	c.Journal.URL = getEnv("DATABASE_URL", c.Journal.URL)

	// If DATABASE_URL is set and no journal was chosen, default to postgres
	if c.Journal.URL != "" && (c.Journal.Type == "" || c.Journal.Type == "none") && os.Getenv("SHIPCHECK_JOURNAL") == "" {
		c.Journal.Type = "postgres"
	}

	c.Metrics.Enabled = getEnvBool("SHIPCHECK_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.PushURL = getEnv("SHIPCHECK_PUSHGATEWAY_URL", c.Metrics.PushURL)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// MaskSecret shortens a secret for display
func MaskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 10 {
		return "****"
	}
	return s[:6] + "..." + s[len(s)-4:]
}
