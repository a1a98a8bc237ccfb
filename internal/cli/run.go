package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/shipcheck/internal/config"
	"github.com/pendergraft/shipcheck/internal/observability/metrics"
	"github.com/pendergraft/shipcheck/internal/pipeline"
	"github.com/pendergraft/shipcheck/internal/storage"
	"github.com/pendergraft/shipcheck/internal/summary"
)

type runFlags struct {
	contract      string
	args          []string
	artifactsDir  string
	builder       string
	addressVar    string
	tokenURI      string
	metadata      []string
	encoding      string
	strategy      string
	eventSig      string
	followup      string
	timeout       time.Duration
	confirmations uint64
	matchArtifact bool
	strict        bool
	journal       string
	output        string
}

func createRunCmd(opts *rootOptions) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deploy, verify, invoke and summarize",
		Long: `Run the full sequence against one network:

  1. connect and read the chain id
  2. read the deployer balance
  3. deploy the contract artifact
  4. verify code exists at the new address
  5. call register(tokenURI, metadata) and wait for the receipt
  6. extract the assigned identifier
  7. print the summary

Any failure in steps 1-5 ends the run with a non-zero exit status. A missing
identifier is reported as "unknown" and the run still succeeds.

EXAMPLES:
  # Local anvil with the default dev account
  shipcheck run

  # Sepolia, keys from SEPOLIA_RPC_URL / SEPOLIA_PRIVATE_KEY
  shipcheck run --network sepolia

  # Strict event matching and hex-encoded metadata
  shipcheck run --strategy event --encoding hex --metadata category=compute

  # Only the export lines
  shipcheck run --output env >> .env
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch f.output {
			case summary.FormatText, summary.FormatJSON, summary.FormatEnv:
			default:
				return fmt.Errorf("unknown output format %q (want text, json or env)", f.output)
			}
			cfg, err := loadConfig(opts, func(c *config.Config) { f.apply(cmd, c) })
			if err != nil {
				return err
			}
			return runPipeline(cmd, opts, cfg, f.output)
		},
	}

	cmd.Flags().StringVarP(&f.contract, "contract", "c", "", "contract name")
	cmd.Flags().StringArrayVar(&f.args, "arg", nil, "constructor argument (repeatable)")
	cmd.Flags().StringVar(&f.artifactsDir, "artifacts", "", "project directory holding the build output")
	cmd.Flags().StringVar(&f.builder, "builder", "", "build tool (auto, foundry, hardhat)")
	cmd.Flags().StringVar(&f.addressVar, "address-var", "", "follow-up variable for the contract address (default IDENTITY_REGISTRY_ADDRESS)")
	cmd.Flags().StringVar(&f.tokenURI, "token-uri", "", "token URI passed to register")
	cmd.Flags().StringArrayVarP(&f.metadata, "metadata", "m", nil, "metadata entry key=value (repeatable, replaces configured entries)")
	cmd.Flags().StringVar(&f.encoding, "encoding", "", "metadata value encoding: utf8 stores the raw text bytes, hex stores the 0x-prefixed hex text itself")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "identifier strategy (event, event-lenient, followup)")
	cmd.Flags().StringVar(&f.eventSig, "event", "", "event signature or topic for the event strategy")
	cmd.Flags().StringVar(&f.followup, "followup", "", "read method for the followup strategy")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "finalization timeout")
	cmd.Flags().Uint64Var(&f.confirmations, "confirmations", 0, "blocks to wait for, including the receipt's")
	cmd.Flags().BoolVar(&f.matchArtifact, "match-artifact", false, "compare on-chain code with the artifact")
	cmd.Flags().BoolVar(&f.strict, "strict-compiler", false, "refuse artifacts that differ from the compiler profile")
	cmd.Flags().StringVar(&f.journal, "journal", "", "journal type (none, sqlite, postgres)")
	cmd.Flags().StringVarP(&f.output, "output", "o", summary.FormatText, "summary format (text, json, env)")

	return cmd
}

// apply copies flags the user set onto cfg
func (f *runFlags) apply(cmd *cobra.Command, c *config.Config) {
	changed := cmd.Flags().Changed
	if changed("contract") {
		c.Contract.Name = f.contract
	}
	if changed("arg") {
		c.Contract.Args = f.args
	}
	if changed("artifacts") {
		c.Contract.ArtifactsDir = f.artifactsDir
	}
	if changed("builder") {
		c.Contract.Builder = f.builder
	}
	if changed("address-var") {
		c.Contract.AddressVar = f.addressVar
	}
	if changed("token-uri") {
		c.Invoke.TokenURI = f.tokenURI
	}
	if changed("metadata") {
		c.Invoke.Metadata = f.metadata
	}
	if changed("encoding") {
		c.Invoke.Encoding = f.encoding
	}
	if changed("strategy") {
		c.Identifier.Strategy = f.strategy
	}
	if changed("event") {
		c.Identifier.EventSignature = f.eventSig
	}
	if changed("followup") {
		c.Identifier.FollowupMethod = f.followup
	}
	if changed("timeout") {
		c.Pipeline.FinalizationTimeout = f.timeout
	}
	if changed("confirmations") {
		c.Pipeline.Confirmations = f.confirmations
	}
	if changed("match-artifact") {
		c.Verify.MatchArtifact = f.matchArtifact
	}
	if changed("strict-compiler") {
		c.Compiler.Strict = f.strict
	}
	if changed("journal") {
		c.Journal.Type = f.journal
	}
}

func runPipeline(cmd *cobra.Command, opts *rootOptions, cfg *config.Config, output string) error {
	logger := setupLogger(cfg, cmd.ErrOrStderr())
	metrics.Init(cfg.Metrics.Enabled)

	// cancel at any await point on interrupt
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := signingKey(cfg, cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Journal, logger)
	if err != nil {
		return fmt.Errorf("initializing journal: %w", err)
	}
	var journal storage.RunStore
	if store != nil {
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating journal: %w", err)
		}
		journal = store
	}

	p, err := pipeline.New(cfg, key, pipeline.Options{
		Dialer:  opts.dialer(),
		Journal: journal,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	record, err := p.Run(ctx).Unwrap()
	if err != nil {
		return err
	}
	return summary.Write(cmd.OutOrStdout(), record, output)
}

// commandContext returns the command's context, or Background outside Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
