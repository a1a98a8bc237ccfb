package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/shipcheck/internal/config"
)

func createNetworksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List network profiles",
		Long: `List the built-in network profiles and those defined in the profiles file
(~/.shipcheck/networks.yaml by default).

A profiles file looks like:

  networks:
    base-sepolia:
      rpc_url: https://sepolia.base.org
      chain_id: 84532
      private_key_env: BASE_SEPOLIA_PRIVATE_KEY
      rpc_requests_per_second: 5

EXAMPLES:
  shipcheck networks
  shipcheck networks --profiles ./networks.yaml
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := config.LoadProfiles(opts.profilesFile)
			if err != nil {
				return fmt.Errorf("loading network profiles: %w", err)
			}
			return writeProfilesTable(cmd.OutOrStdout(), profiles)
		},
	}

	return cmd
}

func writeProfilesTable(out io.Writer, profiles map[string]config.Profile) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCHAIN ID\tRPC URL\tKEY")
	for _, name := range config.ProfileNames(profiles) {
		p := profiles[name].Resolved()

		rpcURL := p.RPCURL
		if rpcURL == "" {
			rpcURL = "(set " + p.RPCURLEnv + ")"
		}
		key := "(not set)"
		switch {
		case p.PrivateKey == config.AnvilDevKey:
			key = "anvil dev account"
		case p.PrivateKey != "":
			key = config.MaskSecret(p.PrivateKey)
		case p.PrivateKeyEnv != "":
			key = "(set " + p.PrivateKeyEnv + ")"
		}
		chainID := "any"
		if p.ChainID != 0 {
			chainID = strconv.FormatInt(p.ChainID, 10)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, chainID, rpcURL, key)
	}
	return w.Flush()
}
