package summary

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatEnv  = "env"
)

// Write renders r in format to w
func Write(w io.Writer, r Record, format string) error {
	switch format {
	case FormatText, "":
		return WriteText(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatEnv:
		return WriteEnv(w, r)
	default:
		return fmt.Errorf("unknown output format %q (want text, json or env)", format)
	}
}

// WriteText renders a two-column table followed by the follow-up exports
func WriteText(w io.Writer, r Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Run", r.RunID},
		{"Network", r.Network},
		{"Chain ID", r.ChainID},
		{"RPC URL", r.RPCURL},
		{"Deployer", r.Deployer},
		{"Balance", r.BalanceEther + " ETH"},
		{"Contract", r.Contract},
		{"Address", r.ContractAddress},
		{"Code size", fmt.Sprintf("%d bytes", r.CodeSize)},
		{"Deploy tx", r.DeployTx},
		{"Invoke tx", r.InvokeTx},
		{"Invoke block", r.InvokeBlock},
		{"Identifier", r.IdentifierText() + " (" + r.IdentifierSource + ")"},
	}
	if r.BalanceEther == Unknown {
		rows[5][1] = Unknown
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Add to your environment:")
	return WriteEnv(w, r)
}

// WriteJSON renders r as indented JSON
func WriteJSON(w io.Writer, r Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteEnv renders only the follow-up configuration as export lines
func WriteEnv(w io.Writer, r Record) error {
	for _, line := range r.FollowUp {
		if _, err := fmt.Fprintf(w, "export %s\n", line); err != nil {
			return err
		}
	}
	return nil
}
