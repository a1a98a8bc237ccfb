package summary

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/shipcheck/internal/chains/evm"
	"github.com/pendergraft/shipcheck/internal/receipt"
)

func fullInput() Input {
	balance, _ := new(big.Int).SetString("10000000000000000000000", 10)
	return Input{
		RunID:   "3f1c0b8e-5a2d-4c1e-9f7a-0d2b6e8c4a11",
		Network: Network{Name: "anvil", ChainID: big.NewInt(31337), URL: "http://localhost:8545"},
		Account: &Account{
			Address: common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
			Balance: balance,
		},
		Deployment: &evm.Deployment{
			Contract: "IdentityRegistry",
			Address:  common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
			TxHash:   common.HexToHash("0xaa"),
			Bytecode: make([]byte, 24),
		},
		Receipt: &types.Receipt{
			TxHash:      common.HexToHash("0xbb"),
			BlockNumber: big.NewInt(2),
		},
		Identifier: receipt.Identifier{Value: big.NewInt(1), Found: true, Source: receipt.StrategyEvent},
	}
}

func TestSummarize(t *testing.T) {
	r := Summarize(fullInput())

	assert.Equal(t, "anvil", r.Network)
	assert.Equal(t, "31337", r.ChainID)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", r.Deployer)
	assert.Equal(t, "10000.0", r.BalanceEther)
	assert.Equal(t, "IdentityRegistry", r.Contract)
	assert.Equal(t, 24, r.CodeSize)
	assert.Equal(t, "2", r.InvokeBlock)
	require.NotNil(t, r.Identifier)
	assert.Equal(t, "1", *r.Identifier)
	assert.Equal(t, []string{
		"IDENTITY_REGISTRY_ADDRESS=0x5FbDB2315678afecb367f032d93F642f64180aa3",
		"CHAIN_RPC_URL=http://localhost:8545",
	}, r.FollowUp)
}

func TestSummarize_MissingInputs(t *testing.T) {
	r := Summarize(Input{})

	for name, v := range map[string]string{
		"run":        r.RunID,
		"network":    r.Network,
		"chain":      r.ChainID,
		"url":        r.RPCURL,
		"deployer":   r.Deployer,
		"balance":    r.BalanceEther,
		"contract":   r.Contract,
		"address":    r.ContractAddress,
		"deploy tx":  r.DeployTx,
		"invoke tx":  r.InvokeTx,
		"block":      r.InvokeBlock,
		"identifier": r.IdentifierText(),
	} {
		assert.Equal(t, Unknown, v, name)
	}
	assert.Nil(t, r.Identifier)
	assert.Zero(t, r.CodeSize)
}

func TestSummarize_NotFoundIdentifier(t *testing.T) {
	in := fullInput()
	in.Identifier = receipt.NotFound(receipt.StrategyEventLenient, "receipt has no logs")
	in.AddressVar = "REGISTRY"

	r := Summarize(in)
	assert.Nil(t, r.Identifier)
	assert.Equal(t, receipt.StrategyEventLenient, r.IdentifierSource)
	assert.True(t, strings.HasPrefix(r.FollowUp[0], "REGISTRY=0x"))
}

func TestFormatEther(t *testing.T) {
	tests := []struct {
		wei  string
		want string
	}{
		{"0", "0.0"},
		{"1", "0.000000000000000001"},
		{"1000000000000000000", "1.0"},
		{"1500000000000000000", "1.5"},
		{"10000000000000000000000", "10000.0"},
		{"-250000000000000000", "-0.25"},
	}

	for _, tt := range tests {
		t.Run(tt.wei, func(t *testing.T) {
			wei, ok := new(big.Int).SetString(tt.wei, 10)
			require.True(t, ok)
			assert.Equal(t, tt.want, FormatEther(wei))
		})
	}
	assert.Equal(t, Unknown, FormatEther(nil))
}

func TestWrite(t *testing.T) {
	r := Summarize(fullInput())

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, r, FormatText))
		out := buf.String()
		assert.Contains(t, out, "Address:")
		assert.Contains(t, out, "10000.0 ETH")
		assert.Contains(t, out, "1 (event)")
		assert.Contains(t, out, "export CHAIN_RPC_URL=http://localhost:8545")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, r, FormatJSON))
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "1", decoded["identifier"])
		assert.Equal(t, "31337", decoded["chainId"])
	})

	t.Run("env", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, r, FormatEnv))
		assert.Equal(t,
			"export IDENTITY_REGISTRY_ADDRESS=0x5FbDB2315678afecb367f032d93F642f64180aa3\nexport CHAIN_RPC_URL=http://localhost:8545\n",
			buf.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		assert.Error(t, Write(&bytes.Buffer{}, r, "yaml"))
	})
}
