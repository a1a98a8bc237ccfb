package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pendergraft/shipcheck/internal/config"
)

// envVars are shown by config show, in precedence order
var envVars = []string{
	"SHIPCHECK_NETWORK", "SHIPCHECK_RPC_URL", "SHIPCHECK_PRIVATE_KEY", "SHIPCHECK_CHAIN_ID",
	"SHIPCHECK_CONTRACT", "SHIPCHECK_ARTIFACTS_DIR", "SHIPCHECK_ADDRESS_VAR", "SHIPCHECK_TOKEN_URI", "SHIPCHECK_METADATA",
	"SHIPCHECK_IDENTIFIER_STRATEGY", "SHIPCHECK_JOURNAL", "DATABASE_URL",
	"ANVIL_RPC_URL", "ANVIL_PRIVATE_KEY", "SEPOLIA_RPC_URL", "SEPOLIA_PRIVATE_KEY",
}

func createConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd(opts))

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var dir string
	var network string
	var contract string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a shipcheck.toml configuration file.

The file holds the project settings of a run: which contract to deploy, how to
call it and how to recover the identifier. Endpoints and keys normally come
from network profiles and the environment.

EXAMPLES:
  # Create config for the local anvil network
  shipcheck config init

  # Create config targeting sepolia
  shipcheck config init --network sepolia

  # Overwrite existing config
  shipcheck config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd.OutOrStdout(), dir, network, contract, force)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory to create the file in")
	cmd.Flags().StringVar(&network, "network", "anvil", "network profile")
	cmd.Flags().StringVar(&contract, "contract", "IdentityRegistry", "contract name")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the configuration sources and the effective configuration.

Secrets are masked.

EXAMPLES:
  shipcheck config show
  shipcheck config show --network sepolia
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout(), opts)
		},
	}

	return cmd
}

func runConfigInit(out io.Writer, dir, network, contract string, force bool) error {
	configPath := filepath.Join(dir, config.ProjectConfigFiles[0])

	// Check if any config file already exists
	if existing, err := config.FindProjectFile(dir); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", existing)
	}

	d := config.Default()

	// Generate TOML config
	content := fmt.Sprintf(`# shipcheck project configuration

[network]
name = "%s"
# rpc_url = "http://localhost:8545"     # overrides the profile
# rpc_requests_per_second = 5           # pace calls to throttled endpoints

[contract]
name = "%s"
builder = "auto"                        # auto, foundry or hardhat
# artifacts_dir = "."
# args = []                             # constructor arguments
# address_var = "IDENTITY_REGISTRY_ADDRESS"  # follow-up variable for the address

[invoke]
method = "%s"
token_uri = "%s"
metadata = [%s]
metadata_encoding = "%s"                # utf8 (raw text bytes) or hex (stores the 0x... text, not decoded bytes)

[identifier]
strategy = "%s"                # event, event-lenient or followup
event_signature = "%s"
followup_method = "%s"

[pipeline]
finalization_timeout = "%s"
poll_interval = "%s"
confirmations = %d

[compiler]
version = "%s"
evm_version = "%s"
optimizer_runs = %d
via_ir = true
strict = false

[journal]
type = "none"                           # none, sqlite or postgres
# path = "%s"
`,
		network, contract,
		d.Invoke.Method, d.Invoke.TokenURI, quoteList(d.Invoke.Metadata), d.Invoke.Encoding,
		d.Identifier.Strategy, d.Identifier.EventSignature, d.Identifier.FollowupMethod,
		d.Pipeline.FinalizationTimeout, d.Pipeline.PollInterval, d.Pipeline.Confirmations,
		d.Compiler.Version, d.Compiler.EVMVersion, d.Compiler.OptimizerRuns,
		d.Journal.Path,
	)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", configPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Network:  %s\n", network)
	fmt.Fprintf(out, "  Contract: %s\n", contract)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Edit %s to customize settings\n", configPath)
	fmt.Fprintln(out, "  2. Build the contract ('forge build' or 'npx hardhat compile')")
	fmt.Fprintln(out, "  3. Run 'shipcheck run'")

	return nil
}

func runConfigShow(out io.Writer, opts *rootOptions) error {
	fmt.Fprintln(out, "Configuration sources (in order of precedence):")
	fmt.Fprintln(out)

	// 1. Command line flags
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "   --network, --rpc-url, --config, run flags")
	fmt.Fprintln(out)

	// 2. Environment variables
	fmt.Fprintln(out, "2. Environment variables")
	for _, k := range envVars {
		v := os.Getenv(k)
		switch {
		case v == "":
			fmt.Fprintf(out, "   %s=(not set)\n", k)
		case isSecret(k):
			fmt.Fprintf(out, "   %s=%s\n", k, config.MaskSecret(v))
		default:
			fmt.Fprintf(out, "   %s=%s\n", k, v)
		}
	}
	fmt.Fprintln(out)

	// 3. Project config
	fmt.Fprintln(out, "3. Project config (shipcheck.toml or .shipcheck.toml)")
	path := opts.cfgFile
	if path == "" {
		path, _ = config.FindProjectFile(".")
	}
	if path == "" {
		fmt.Fprintln(out, "   (not found)")
	} else {
		fmt.Fprintf(out, "   Loaded from: %s\n", path)
	}
	fmt.Fprintln(out)

	// 4. Network profiles
	fmt.Fprintf(out, "4. Network profiles (built-in and %s)\n", opts.profilesFile)
	profiles, err := config.LoadProfiles(opts.profilesFile)
	if err != nil {
		fmt.Fprintf(out, "   Error: %v\n", err)
	} else {
		fmt.Fprintf(out, "   %s\n", strings.Join(config.ProfileNames(profiles), ", "))
	}
	fmt.Fprintln(out)

	// Effective config
	cfg, err := loadConfig(opts, nil)
	if err != nil {
		fmt.Fprintln(out, "Effective configuration: (invalid)")
		fmt.Fprintf(out, "   %v\n", err)
		return nil
	}
	fmt.Fprintln(out, "Effective configuration:")
	fmt.Fprintf(out, "   Network:     %s (chain %d)\n", cfg.Network.Name, cfg.Network.ChainID)
	fmt.Fprintf(out, "   RPC URL:     %s\n", cfg.Network.RPCURL)
	fmt.Fprintf(out, "   Private key: %s\n", config.MaskSecret(cfg.Network.PrivateKey))
	fmt.Fprintf(out, "   Contract:    %s (builder %s)\n", cfg.Contract.Name, cfg.Contract.Builder)
	fmt.Fprintf(out, "   Invoke:      %s(%q, %d metadata entries, %s)\n", cfg.Invoke.Method, cfg.Invoke.TokenURI, len(cfg.Invoke.Metadata), cfg.Invoke.Encoding)
	fmt.Fprintf(out, "   Identifier:  %s\n", cfg.Identifier.Strategy)
	fmt.Fprintf(out, "   Timeout:     %s\n", cfg.Pipeline.FinalizationTimeout)
	fmt.Fprintf(out, "   Journal:     %s\n", cfg.Journal.Type)

	return nil
}

func isSecret(envVar string) bool {
	return strings.HasSuffix(envVar, "_PRIVATE_KEY") || envVar == "DATABASE_URL"
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
