// Package evmtest provides an in-memory evm.Backend for tests.
package evmtest

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// DevKeyHex is the first well-known Anvil/Hardhat development account
const DevKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// DevKey returns the development private key
func DevKey() *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA(DevKeyHex)
	if err != nil {
		panic(err)
	}
	return key
}

// Backend is a scriptable chain. Unset fields behave like a healthy
// post-London dev chain; receipts are produced by OnSend.
type Backend struct {
	mu sync.Mutex

	ChainIDValue *big.Int
	ChainIDErr   error
	Balances     map[common.Address]*big.Int
	Code         map[common.Address][]byte
	CodeErr      error
	Nonce        uint64
	BaseFee      *big.Int // nil makes the chain pre-London
	Legacy       bool
	Tip          *big.Int
	GasPrice     *big.Int
	Gas          uint64
	EstimateErr  error
	SendErr      error
	Head         uint64
	CallResult   []byte
	CallErr      error

	// OnSend returns the receipt the chain will eventually report for tx, or
	// nil to leave it pending forever.
	OnSend func(tx *types.Transaction) *types.Receipt
	// OnCall runs before CallContract answers
	OnCall func(msg ethereum.CallMsg)

	Sent     []*types.Transaction
	Calls    []ethereum.CallMsg
	receipts map[common.Hash]*types.Receipt
	closed   bool
}

// New returns a backend on chain 31337 with base fee 1 gwei
func New() *Backend {
	return &Backend{
		ChainIDValue: big.NewInt(31337),
		Balances:     map[common.Address]*big.Int{},
		Code:         map[common.Address][]byte{},
		BaseFee:      big.NewInt(1_000_000_000),
		Tip:          big.NewInt(1_000_000),
		GasPrice:     big.NewInt(2_000_000_000),
		Gas:          100_000,
		Head:         1,
		receipts:     map[common.Hash]*types.Receipt{},
	}
}

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	return b.ChainIDValue, b.ChainIDErr
}

func (b *Backend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bal, ok := b.Balances[account]; ok {
		return bal, nil
	}
	return new(big.Int), nil
}

func (b *Backend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.CodeErr != nil {
		return nil, b.CodeErr
	}
	return b.Code[account], nil
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Nonce, nil
}

func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := &types.Header{Number: new(big.Int).SetUint64(b.Head)}
	if !b.Legacy {
		h.BaseFee = b.BaseFee
	}
	return h, nil
}

func (b *Backend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return b.Tip, nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return b.GasPrice, nil
}

func (b *Backend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.EstimateErr != nil {
		return 0, b.EstimateErr
	}
	return b.Gas, nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SendErr != nil {
		return b.SendErr
	}
	b.Sent = append(b.Sent, tx)
	b.Nonce++
	if b.OnSend != nil {
		if r := b.OnSend(tx); r != nil {
			b.Head++
			if r.BlockNumber == nil {
				r.BlockNumber = new(big.Int).SetUint64(b.Head)
			}
			r.TxHash = tx.Hash()
			b.receipts[tx.Hash()] = r
		}
	}
	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Head, nil
}

// Mine advances the head by n blocks
func (b *Backend) Mine(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Head += n
}

func (b *Backend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, msg)
	if b.OnCall != nil {
		b.OnCall(msg)
	}
	return b.CallResult, b.CallErr
}

func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// Closed reports whether Close was called
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// SentCount returns the number of submitted transactions
func (b *Backend) SentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Sent)
}

// Success returns a successful receipt with the given logs
func Success(logs ...*types.Log) *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 21000, Logs: logs}
}

// Failure returns a reverted receipt
func Failure() *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusFailed, GasUsed: 21000}
}

// Deployed returns an OnSend hook that creates code at the contract address
// of every creation transaction and succeeds every call with logs.
func (b *Backend) Deployed(code []byte, logs ...*types.Log) func(tx *types.Transaction) *types.Receipt {
	return func(tx *types.Transaction) *types.Receipt {
		r := Success(logs...)
		if tx.To() == nil {
			from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
			if err != nil {
				panic(err)
			}
			addr := crypto.CreateAddress(from, tx.Nonce())
			b.Code[addr] = code
			r.ContractAddress = addr
			r.Logs = nil
		}
		return r
	}
}

// RPCError mimics a JSON-RPC error with a data field, as returned for reverts
type RPCError struct {
	Message string
	Data    string
}

func (e *RPCError) Error() string          { return e.Message }
func (e *RPCError) ErrorData() interface{} { return e.Data }

// Revert returns the error a node reports for require(false, reason)
func Revert(reason string) error {
	stringTy, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	data := append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...)
	return &RPCError{Message: "execution reverted: " + reason, Data: hexutil.Encode(data)}
}
