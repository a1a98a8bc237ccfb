package cli

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/pendergraft/shipcheck/internal/chains/evm"
	"github.com/pendergraft/shipcheck/internal/config"
	"github.com/pendergraft/shipcheck/internal/validation"
)

func createVerifyCodeCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "verify-code <address>",
		Short: "Check that code exists at an address",
		Long: `Connect to the network and confirm that an existing address hosts contract
code. Fails when the address has no code.

EXAMPLES:
  shipcheck verify-code 0x5FbDB2315678afecb367f032d93F642f64180aa3
  shipcheck verify-code --network sepolia 0x... --json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateAddress(args[0]); err != nil {
				return err
			}
			return runVerifyCode(cmd, opts, common.HexToAddress(args[0]), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runVerifyCode(cmd *cobra.Command, opts *rootOptions, addr common.Address, jsonOutput bool) error {
	cfg, err := loadConfig(opts, nil)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg, cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	// reads need no signing identity; any key will do
	key, err := evm.ParseKey(cfg.Network.PrivateKey)
	if err != nil {
		key, err = evm.ParseKey(config.AnvilDevKey)
		if err != nil {
			return err
		}
	}

	net, err := opts.dialer()(ctx, evm.NetworkConfig{
		Name:              cfg.Network.Name,
		RPCURL:            cfg.Network.RPCURL,
		ChainID:           cfg.Network.ChainID,
		RequestsPerSecond: cfg.Network.RequestsPerSecond,
	}, key, logger)
	if err != nil {
		return err
	}
	defer net.Close()

	code, err := evm.VerifyCode(ctx, net, addr)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"address":  addr.Hex(),
			"chainId":  net.ChainID().String(),
			"network":  net.Name(),
			"hasCode":  true,
			"codeSize": len(code),
		})
	}

	fmt.Fprintf(out, "✓ Code present at %s on %s (chain %s): %d bytes\n", addr.Hex(), net.Name(), net.ChainID(), len(code))
	return nil
}
