package config

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"

	"github.com/pendergraft/shipcheck/internal/metadata"
	"github.com/pendergraft/shipcheck/internal/receipt"
	"github.com/pendergraft/shipcheck/internal/validation"
)

// Validate reports every problem in the configuration. An empty private key is
// allowed here; the caller decides whether to prompt for one.
func (c *Config) Validate() error {
	var errs []error
	add := func(field string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	add("network.rpc_url", validation.ValidateRPCURL(c.Network.RPCURL))
	if c.Network.PrivateKey != "" {
		add("network.private_key", validation.ValidatePrivateKey(c.Network.PrivateKey))
	}
	if c.Network.ChainID != 0 {
		add("network.chain_id", validation.ValidateChainID(c.Network.ChainID))
	}
	if c.Network.RequestsPerSecond < 0 {
		add("network.rpc_requests_per_second", errors.New("must not be negative"))
	}

	if c.Contract.Name == "" {
		add("contract.name", errors.New("required"))
	}
	switch c.Contract.Builder {
	case "", "auto", "foundry", "hardhat":
	default:
		add("contract.builder", fmt.Errorf("unknown builder %q", c.Contract.Builder))
	}
	if c.Contract.AddressVar != "" {
		add("contract.address_var", validation.ValidateEnvVarName(c.Contract.AddressVar))
	}

	if c.Invoke.Method == "" {
		add("invoke.method", errors.New("required"))
	}
	enc, err := metadata.ParseEncoding(c.Invoke.Encoding)
	add("invoke.metadata_encoding", err)
	if err == nil {
		_, err := metadata.ParseEntries(c.Invoke.Metadata, enc)
		add("invoke.metadata", err)
	}

	_, err = receipt.ParsePolicy(c.Identifier.Strategy, c.Identifier.EventSignature, c.Identifier.FollowupMethod)
	add("identifier", err)

	if c.Pipeline.FinalizationTimeout <= 0 {
		add("pipeline.finalization_timeout", errors.New("must be positive"))
	}
	if c.Pipeline.PollInterval <= 0 {
		add("pipeline.poll_interval", errors.New("must be positive"))
	}
	if c.Pipeline.GasMultiplier != 0 && c.Pipeline.GasMultiplier < 1 {
		add("pipeline.gas_multiplier", errors.New("must be at least 1"))
	}
	_, err = ParseWei(c.Pipeline.MaxFeePerGas)
	add("pipeline.max_fee_per_gas", err)
	_, err = ParseWei(c.Pipeline.MaxPriorityFeePerGas)
	add("pipeline.max_priority_fee_per_gas", err)

	if c.Compiler.Version != "" {
		add("compiler.version", validation.ValidateCompilerVersion(c.Compiler.Version))
	}
	if c.Compiler.OptimizerRuns < 0 {
		add("compiler.optimizer_runs", errors.New("must not be negative"))
	}

	switch c.Journal.Type {
	case "", "none":
	case "sqlite":
		if c.Journal.Path == "" {
			add("journal.path", errors.New("required for sqlite"))
		}
	case "postgres":
		if c.Journal.URL == "" {
			add("journal.url", errors.New("required for postgres (or set DATABASE_URL)"))
		}
	default:
		add("journal.type", fmt.Errorf("unknown journal type %q", c.Journal.Type))
	}

	if c.Metrics.PushURL != "" {
		if u, err := url.Parse(c.Metrics.PushURL); err != nil || u.Host == "" {
			add("metrics.pushgateway_url", errors.New("invalid URL"))
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level", fmt.Errorf("unknown level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		add("logging.format", fmt.Errorf("unknown format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// ParseWei parses a decimal wei amount. Empty means unset and returns nil.
func ParseWei(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return v, nil
}
