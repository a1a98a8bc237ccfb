// Package evm talks to Ethereum and compatible chains: it deploys artifacts,
// reads back code, invokes contract methods and waits for receipts.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/pendergraft/shipcheck/internal/faults"
)

// Backend is the JSON-RPC surface used by a Network. *ethclient.Client implements it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

var _ Backend = (*ethclient.Client)(nil)

// NetworkConfig describes the endpoint a Network is bound to
type NetworkConfig struct {
	Name    string
	RPCURL  string
	ChainID int64 // expected chain id, 0 = accept whatever the endpoint reports

	// RequestsPerSecond paces RPC calls client-side, 0 = unpaced
	RequestsPerSecond float64
}

// Network is bound to one endpoint and one signing key. All chain access goes through it.
type Network struct {
	name    string
	url     string
	backend Backend
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Connect dials cfg.RPCURL and binds the resulting client to key.
func Connect(ctx context.Context, cfg NetworkConfig, key *ecdsa.PrivateKey, logger *slog.Logger) (*Network, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, faults.New(faults.Connectivity, "dial "+cfg.RPCURL, err)
	}
	n, err := NewNetwork(ctx, cfg, client, key, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	return n, nil
}

// ParseKey decodes a hex-encoded private key, with or without the 0x prefix
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// NewNetwork binds an existing backend. The chain id is read once here.
func NewNetwork(ctx context.Context, cfg NetworkConfig, backend Backend, key *ecdsa.PrivateKey, logger *slog.Logger) (*Network, error) {
	if key == nil {
		return nil, errors.New("signing key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	n := &Network{
		name:    cfg.Name,
		url:     cfg.RPCURL,
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		logger:  logger,
	}
	if cfg.RequestsPerSecond > 0 {
		n.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	if err := n.pace(ctx); err != nil {
		return nil, err
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, faults.New(faults.Connectivity, "chain id", err)
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, faults.Newf(faults.Connectivity, "chain id", "endpoint returned invalid chain id %v", chainID)
	}
	if cfg.ChainID != 0 && chainID.Cmp(big.NewInt(cfg.ChainID)) != 0 {
		return nil, faults.Newf(faults.Connectivity, "chain id", "endpoint is on chain %s, expected %d", chainID, cfg.ChainID)
	}
	n.chainID = chainID

	logger.Debug("connected to network", "network", cfg.Name, "chainId", chainID, "from", n.from.Hex())
	return n, nil
}

// pace blocks until the rate limiter admits another request
func (n *Network) pace(ctx context.Context) error {
	if n.limiter == nil {
		return nil
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return ctxFault(ctx, "rate limit", err)
	}
	return nil
}

// Name returns the configured network name
func (n *Network) Name() string { return n.name }

// URL returns the endpoint URL
func (n *Network) URL() string { return n.url }

// ChainID returns the chain id read at connect time
func (n *Network) ChainID() *big.Int { return new(big.Int).Set(n.chainID) }

// From returns the signing address
func (n *Network) From() common.Address { return n.from }

// Close releases the underlying client
func (n *Network) Close() { n.backend.Close() }

// Balance returns the balance of addr in wei
func (n *Network) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	if err := n.pace(ctx); err != nil {
		return nil, err
	}
	bal, err := n.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, readFault(ctx, "balance", err)
	}
	return bal, nil
}

// Bytecode returns the runtime code at addr. An empty slice means no code.
func (n *Network) Bytecode(ctx context.Context, addr common.Address) ([]byte, error) {
	if err := n.pace(ctx); err != nil {
		return nil, err
	}
	code, err := n.backend.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, readFault(ctx, "code", err)
	}
	return code, nil
}

// Nonce returns the next pending nonce of the signing address
func (n *Network) Nonce(ctx context.Context) (uint64, error) {
	if err := n.pace(ctx); err != nil {
		return 0, err
	}
	nonce, err := n.backend.PendingNonceAt(ctx, n.from)
	if err != nil {
		return 0, readFault(ctx, "nonce", err)
	}
	return nonce, nil
}

// HeadBaseFee returns the base fee of the latest block, nil on pre-London chains
func (n *Network) HeadBaseFee(ctx context.Context) (*big.Int, error) {
	if err := n.pace(ctx); err != nil {
		return nil, err
	}
	head, err := n.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, readFault(ctx, "head block", err)
	}
	return head.BaseFee, nil
}

// SuggestGasTipCap returns the node's priority fee suggestion
func (n *Network) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if err := n.pace(ctx); err != nil {
		return nil, err
	}
	tip, err := n.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, readFault(ctx, "gas tip", err)
	}
	return tip, nil
}

// SuggestGasPrice returns the node's legacy gas price suggestion
func (n *Network) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := n.pace(ctx); err != nil {
		return nil, err
	}
	price, err := n.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, readFault(ctx, "gas price", err)
	}
	return price, nil
}

// EstimateGas simulates msg. Errors are returned unclassified; a revert here
// means different things to the deployer and the invoker.
func (n *Network) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := n.pace(ctx); err != nil {
		return 0, err
	}
	return n.backend.EstimateGas(ctx, msg)
}

// SignTx signs tx with the network's key
func (n *Network) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(n.chainID), n.key)
}

// Send submits a signed transaction. Errors are returned unclassified.
func (n *Network) Send(ctx context.Context, tx *types.Transaction) error {
	if err := n.pace(ctx); err != nil {
		return err
	}
	return n.backend.SendTransaction(ctx, tx)
}

// Receipt returns the receipt of hash, ethereum.NotFound while pending
func (n *Network) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := n.pace(ctx); err != nil {
		return nil, err
	}
	return n.backend.TransactionReceipt(ctx, hash)
}

// BlockNumber returns the current head
func (n *Network) BlockNumber(ctx context.Context) (uint64, error) {
	if err := n.pace(ctx); err != nil {
		return 0, err
	}
	return n.backend.BlockNumber(ctx)
}

// Call executes a read-only call against the latest block
func (n *Network) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if err := n.pace(ctx); err != nil {
		return nil, err
	}
	return n.backend.CallContract(ctx, msg, nil)
}

// readFault classifies a failed read: context expiry keeps its own kind,
// everything else means the endpoint did not answer properly.
func readFault(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctxFault(ctx, op, err)
	}
	return faults.New(faults.Connectivity, op, err)
}

// ctxFault maps a context error to Timeout or Canceled
func ctxFault(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return faults.New(faults.Timeout, op, err)
	}
	if ctx.Err() != nil {
		return faults.New(faults.Canceled, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
