package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/shipcheck/internal/config"
	"github.com/pendergraft/shipcheck/internal/storage"
)

func createRunsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run journal",
	}

	cmd.AddCommand(createRunsListCmd(opts))

	return cmd
}

func createRunsListCmd(opts *rootOptions) *cobra.Command {
	var limit int
	var jsonOutput bool
	var status string
	var journalType string
	var journalPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Long: `List runs recorded in the journal, newest first.

The journal is written at the end of every run when [journal] is configured.
Runs never read it.

EXAMPLES:
  shipcheck runs list
  shipcheck runs list --network sepolia --status failed
  shipcheck runs list --journal sqlite --path ./data/shipcheck.db --json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, func(c *config.Config) {
				if cmd.Flags().Changed("journal") {
					c.Journal.Type = journalType
				}
				if cmd.Flags().Changed("path") {
					c.Journal.Path = journalPath
				}
			})
			if err != nil {
				return err
			}

			filter := storage.RunFilter{Status: status, Limit: limit}
			if opts.network != "" {
				filter.Network = cfg.Network.Name
			}
			return runRunsList(cmd, cfg, filter, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (succeeded, failed)")
	cmd.Flags().StringVar(&journalType, "journal", "", "journal type (sqlite, postgres)")
	cmd.Flags().StringVar(&journalPath, "path", "", "sqlite journal path")

	return cmd
}

func runRunsList(cmd *cobra.Command, cfg *config.Config, filter storage.RunFilter, jsonOutput bool) error {
	ctx := commandContext(cmd)
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := storage.New(cfg.Journal, logger)
	if err != nil {
		return fmt.Errorf("initializing journal: %w", err)
	}
	if store == nil {
		return fmt.Errorf("no journal configured (set [journal] type in shipcheck.toml or pass --journal)")
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating journal: %w", err)
	}

	runs, err := store.ListRuns(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found")
		return nil
	}
	return writeRunsTable(out, runs)
}

func writeRunsTable(out io.Writer, runs []storage.Run) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tNETWORK\tCONTRACT\tADDRESS\tIDENTIFIER\tSTATUS")
	for _, r := range runs {
		// Truncate ID for display
		idDisplay := r.ID
		if len(r.ID) > 8 {
			idDisplay = r.ID[:8] + "..."
		}
		identifier := r.Identifier
		if identifier == "" {
			identifier = "-"
		}
		address := r.ContractAddress
		if address == "" {
			address = "-"
		}
		status := r.Status
		if r.ErrorKind != "" {
			status += " (" + r.ErrorKind + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			idDisplay, r.StartedAt.Local().Format(time.DateTime), r.Network, r.Contract, address, identifier, status)
	}
	return w.Flush()
}
