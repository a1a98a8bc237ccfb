package evm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/shipcheck/internal/chains"
	"github.com/pendergraft/shipcheck/internal/chains/evm/evmtest"
	"github.com/pendergraft/shipcheck/internal/faults"
)

var fastWait = WaitOptions{Timeout: time.Second, PollInterval: 5 * time.Millisecond}

func newTestDeployer(t *testing.T, b *evmtest.Backend) *Deployer {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, evmtest.WriteFoundryProject(dir, "IdentityRegistry"))
	return NewDeployer(newTestNetwork(t, b), nil, DeployerConfig{ArtifactsDir: dir, Wait: fastWait}, nil)
}

func TestDeployer_Deploy(t *testing.T) {
	b := evmtest.New()
	b.Nonce = 7
	b.OnSend = b.Deployed(evmtest.RuntimeCode)
	d := newTestDeployer(t, b)

	dep, err := d.Deploy(context.Background(), "IdentityRegistry")
	require.NoError(t, err)

	from := crypto.PubkeyToAddress(evmtest.DevKey().PublicKey)
	assert.Equal(t, crypto.CreateAddress(from, 7), dep.Address)
	assert.Equal(t, uint64(7), dep.Nonce)
	assert.Equal(t, "IdentityRegistry", dep.Contract)
	assert.NotZero(t, dep.BlockNumber)
	assert.Nil(t, dep.Bytecode, "code is not read back by the deployer")
	require.NotNil(t, dep.Artifact)
	assert.Equal(t, "foundry", dep.Artifact.Builder)

	require.Equal(t, 1, b.SentCount())
	tx := b.Sent[0]
	assert.Nil(t, tx.To())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(120_000), tx.Gas(), "estimate plus 20%")
	// 2 * base fee + tip
	assert.Equal(t, int64(2_001_000_000), tx.GasFeeCap().Int64())
	assert.Equal(t, dep.TxHash, tx.Hash())
}

func TestDeployer_LegacyChain(t *testing.T) {
	b := evmtest.New()
	b.Legacy = true
	b.OnSend = b.Deployed(evmtest.RuntimeCode)
	d := newTestDeployer(t, b)

	_, err := d.Deploy(context.Background(), "IdentityRegistry")
	require.NoError(t, err)
	require.Equal(t, 1, b.SentCount())
	assert.Equal(t, uint8(types.LegacyTxType), b.Sent[0].Type())
	assert.Equal(t, b.GasPrice, b.Sent[0].GasPrice())
}

func TestDeployer_ReceiptWithoutAddress(t *testing.T) {
	b := evmtest.New()
	b.Nonce = 3
	b.OnSend = func(*types.Transaction) *types.Receipt { return evmtest.Success() }
	d := newTestDeployer(t, b)

	dep, err := d.Deploy(context.Background(), "IdentityRegistry")
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(d.net.From(), 3), dep.Address)
}

func TestDeployer_ZeroBalanceStillSubmits(t *testing.T) {
	b := evmtest.New()
	b.SendErr = errors.New("insufficient funds for gas * price + value: address 0xf39F have 0 want 240000000000000")
	d := newTestDeployer(t, b)

	bal, err := d.net.Balance(context.Background(), d.net.From())
	require.NoError(t, err)
	require.Zero(t, bal.Sign())

	_, err = d.Deploy(context.Background(), "IdentityRegistry")
	require.Error(t, err)
	assert.ErrorIs(t, err, faults.ErrDeployment)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestDeployer_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(b *evmtest.Backend)
		contract string
		wantKind error
	}{
		{
			name:     "unknown contract",
			contract: "Nope",
			wantKind: faults.ErrDeployment,
		},
		{
			name:     "estimate rejects invalid bytecode",
			setup:    func(b *evmtest.Backend) { b.EstimateErr = errors.New("invalid opcode: INVALID") },
			contract: "IdentityRegistry",
			wantKind: faults.ErrDeployment,
		},
		{
			name:     "nonce conflict",
			setup:    func(b *evmtest.Backend) { b.SendErr = errors.New("nonce too low") },
			contract: "IdentityRegistry",
			wantKind: faults.ErrDeployment,
		},
		{
			name: "creation reverted",
			setup: func(b *evmtest.Backend) {
				b.OnSend = func(*types.Transaction) *types.Receipt { return evmtest.Failure() }
			},
			contract: "IdentityRegistry",
			wantKind: faults.ErrDeployment,
		},
		{
			name:     "never mined",
			contract: "IdentityRegistry",
			wantKind: faults.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := evmtest.New()
			if tt.setup != nil {
				tt.setup(b)
			}
			d := newTestDeployer(t, b)
			d.cfg.Wait.Timeout = 50 * time.Millisecond

			_, err := d.Deploy(context.Background(), tt.contract)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.NotErrorIs(t, err, ErrInsufficientFunds)
		})
	}
}

func TestCreationData(t *testing.T) {
	withArgs := &chains.Artifact{
		Name:     "Vault",
		Bytecode: "0x6080",
		ABI: []byte(`[{"type":"constructor","inputs":[
			{"name":"owner","type":"address"},{"name":"cap","type":"uint64"},{"name":"label","type":"string"}]}]`),
	}

	data, err := creationData(withArgs, []any{"0x5FbDB2315678afecb367f032d93F642f64180aa3", "1000", "main"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, data[:2])
	assert.Equal(t, 2+32*5, len(data), "code + owner, cap, offset, length, one word of string data")
	assert.Equal(t, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), common.BytesToAddress(data[2:34]))

	_, err = creationData(withArgs, []any{"0x5FbDB2315678afecb367f032d93F642f64180aa3"})
	assert.ErrorContains(t, err, "argument count mismatch")

	_, err = creationData(&chains.Artifact{Name: "I", Bytecode: "0x"}, nil)
	assert.ErrorIs(t, err, chains.ErrNoBytecode)

	linked := &chains.Artifact{Name: "L", Bytecode: "0x73__$1234567890abcdef1234567890abcdef12$__6080"}
	_, err = creationData(linked, nil)
	assert.ErrorContains(t, err, "unlinked library")

	bare, err := creationData(&chains.Artifact{Name: "Bare", Bytecode: "0x6080"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, bare)
}
