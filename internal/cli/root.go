package cli

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pendergraft/shipcheck/internal/chains/evm"
	"github.com/pendergraft/shipcheck/internal/config"
	"github.com/pendergraft/shipcheck/internal/pipeline"
)

// rootOptions holds the global flags shared by all subcommands
type rootOptions struct {
	cfgFile      string
	profilesFile string
	network      string
	rpcURL       string
	logLevel     string
	logFormat    string

	// dial replaces evm.Connect in tests
	dial pipeline.Dialer
}

// Execute runs the CLI
func Execute(version string) error {
	return newRootCmd(version, &rootOptions{}).Execute()
}

func newRootCmd(version string, opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shipcheck",
		Short: "Deploy, verify and exercise a contract in one run",
		Long: `shipcheck deploys a compiled contract, confirms code exists at the new
address, sends one registration transaction and reports the identifier the
contract assigned.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default: shipcheck.toml or .shipcheck.toml)")
	rootCmd.PersistentFlags().StringVar(&opts.profilesFile, "profiles", config.DefaultProfilesPath(), "network profiles file")
	rootCmd.PersistentFlags().StringVarP(&opts.network, "network", "n", "", "network profile (anvil, sepolia, ...)")
	rootCmd.PersistentFlags().StringVar(&opts.rpcURL, "rpc-url", "", "RPC endpoint, overrides the profile")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (text, json)")

	// Add subcommands
	rootCmd.AddCommand(createRunCmd(opts))
	rootCmd.AddCommand(createVerifyCodeCmd(opts))
	rootCmd.AddCommand(createConfigCmd(opts))
	rootCmd.AddCommand(createRunsCmd(opts))
	rootCmd.AddCommand(createNetworksCmd(opts))

	return rootCmd
}

// loadConfig builds the effective configuration: file and environment, then
// the command's flag overrides, then the network profile.
func loadConfig(opts *rootOptions, override func(*config.Config)) (*config.Config, error) {
	cfg, _, err := config.Load(opts.cfgFile, ".")
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if opts.network != "" {
		cfg.Network.Name = opts.network
	}
	if opts.rpcURL != "" {
		cfg.Network.RPCURL = opts.rpcURL
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	if override != nil {
		override(cfg)
	}

	profiles, err := config.LoadProfiles(opts.profilesFile)
	if err != nil {
		return nil, fmt.Errorf("loading network profiles: %w", err)
	}
	if err := cfg.ResolveNetwork(profiles); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func (o *rootOptions) dialer() pipeline.Dialer {
	if o.dial != nil {
		return o.dial
	}
	return evm.Connect
}

// setupLogger builds the run logger. Logs go to w (stderr); stdout is
// reserved for the summary.
func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// signingKey returns the configured key, prompting for one when none is
// configured and stdin is a terminal.
func signingKey(cfg *config.Config, in io.Reader, out io.Writer) (*ecdsa.PrivateKey, error) {
	hexKey := cfg.Network.PrivateKey
	if hexKey == "" {
		f, ok := in.(*os.File)
		if !ok || !term.IsTerminal(int(f.Fd())) {
			return nil, errors.New("no private key configured (set SHIPCHECK_PRIVATE_KEY or the profile's key variable)")
		}

		fmt.Fprintf(out, "Enter private key for %s: ", cfg.Network.Name)
		byteKey, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out) // New line after password input
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		hexKey = strings.TrimSpace(string(byteKey))
	}
	return evm.ParseKey(hexKey)
}
