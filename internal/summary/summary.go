// Package summary assembles the record printed at the end of a run.
package summary

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/pendergraft/shipcheck/internal/chains/evm"
	"github.com/pendergraft/shipcheck/internal/receipt"
)

// Unknown is rendered for inputs the run did not produce
const Unknown = "unknown"

// DefaultAddressVar is the follow-up variable holding the contract address
const DefaultAddressVar = "IDENTITY_REGISTRY_ADDRESS"

// RPCURLVar is the follow-up variable holding the endpoint
const RPCURLVar = "CHAIN_RPC_URL"

// Account is the signing account as observed before deployment
type Account struct {
	Address common.Address
	Balance *big.Int
}

// Network identifies the endpoint a run used
type Network struct {
	Name    string
	ChainID *big.Int
	URL     string
}

// Input carries everything a run produced. Any field may be missing.
type Input struct {
	RunID      string
	Network    Network
	Account    *Account
	Deployment *evm.Deployment
	Receipt    *types.Receipt
	Identifier receipt.Identifier
	AddressVar string // default IDENTITY_REGISTRY_ADDRESS
}

// Record is the final human-facing output of a run
type Record struct {
	RunID            string   `json:"runId"`
	Network          string   `json:"network"`
	ChainID          string   `json:"chainId"`
	RPCURL           string   `json:"rpcUrl"`
	Deployer         string   `json:"deployer"`
	BalanceWei       string   `json:"balanceWei"`
	BalanceEther     string   `json:"balanceEther"`
	Contract         string   `json:"contract"`
	ContractAddress  string   `json:"contractAddress"`
	CodeSize         int      `json:"codeSize"`
	DeployTx         string   `json:"deployTx"`
	InvokeTx         string   `json:"invokeTx"`
	InvokeBlock      string   `json:"invokeBlock"`
	Identifier       *string  `json:"identifier"`
	IdentifierSource string   `json:"identifierSource"`
	FollowUp         []string `json:"followUp"`
}

// IdentifierText returns the identifier or "unknown"
func (r Record) IdentifierText() string {
	if r.Identifier == nil {
		return Unknown
	}
	return *r.Identifier
}

// Summarize builds the record. It has no side effects and cannot fail.
func Summarize(in Input) Record {
	r := Record{
		RunID:            orUnknown(in.RunID),
		Network:          orUnknown(in.Network.Name),
		ChainID:          bigOrUnknown(in.Network.ChainID),
		RPCURL:           orUnknown(in.Network.URL),
		Deployer:         Unknown,
		BalanceWei:       Unknown,
		BalanceEther:     Unknown,
		Contract:         Unknown,
		ContractAddress:  Unknown,
		DeployTx:         Unknown,
		InvokeTx:         Unknown,
		InvokeBlock:      Unknown,
		IdentifierSource: orUnknown(in.Identifier.Source),
	}

	if in.Account != nil {
		r.Deployer = in.Account.Address.Hex()
		if in.Account.Balance != nil {
			r.BalanceWei = in.Account.Balance.String()
			r.BalanceEther = FormatEther(in.Account.Balance)
		}
	}

	if d := in.Deployment; d != nil {
		r.Contract = orUnknown(d.Contract)
		r.ContractAddress = d.Address.Hex()
		r.CodeSize = len(d.Bytecode)
		if d.TxHash != (common.Hash{}) {
			r.DeployTx = d.TxHash.Hex()
		}
	}

	if rc := in.Receipt; rc != nil {
		if rc.TxHash != (common.Hash{}) {
			r.InvokeTx = rc.TxHash.Hex()
		}
		r.InvokeBlock = bigOrUnknown(rc.BlockNumber)
	}

	if in.Identifier.Found && in.Identifier.Value != nil {
		s := in.Identifier.Value.String()
		r.Identifier = &s
	}

	addressVar := in.AddressVar
	if addressVar == "" {
		addressVar = DefaultAddressVar
	}
	r.FollowUp = []string{
		addressVar + "=" + r.ContractAddress,
		RPCURLVar + "=" + r.RPCURL,
	}

	return r
}

var weiPerEther = big.NewInt(1_000_000_000_000_000_000)

// FormatEther renders wei as a decimal ether amount without rounding, e.g. "10000.0" or "0.000000000000000001".
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return Unknown
	}
	abs := new(big.Int).Abs(wei)
	whole, frac := new(big.Int).QuoRem(abs, weiPerEther, new(big.Int))

	fracStr := strings.TrimRight(leftPad(frac.String(), 18), "0")
	if fracStr == "" {
		fracStr = "0"
	}

	sign := ""
	if wei.Sign() < 0 {
		sign = "-"
	}
	return sign + whole.String() + "." + fracStr
}

func leftPad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

func bigOrUnknown(n *big.Int) string {
	if n == nil {
		return Unknown
	}
	return n.String()
}
