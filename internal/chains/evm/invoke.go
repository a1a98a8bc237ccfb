package evm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/pendergraft/shipcheck/internal/faults"
	"github.com/pendergraft/shipcheck/internal/metadata"
)

// ErrReverted marks a call that the contract rejected
var ErrReverted = errors.New("execution reverted")

// InvokerConfig configures transaction handling for invocations
type InvokerConfig struct {
	Tx   TxOptions
	Wait WaitOptions
}

// Invoker submits state-changing calls and waits for their receipts
type Invoker struct {
	net    *Network
	cfg    InvokerConfig
	logger *slog.Logger
}

// NewInvoker creates an invoker bound to net
func NewInvoker(net *Network, cfg InvokerConfig, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{net: net, cfg: cfg, logger: logger}
}

// Invoke calls method on the contract at address and blocks until the
// receipt is available. Entries are appended as the final
// tuple(string,bytes)[] argument when the method takes one; their values
// must already be encoded. A revert is a Transaction fault, a missing receipt
// a Timeout fault. Nothing is resubmitted.
func (iv *Invoker) Invoke(ctx context.Context, address common.Address, contractABI abi.ABI, method string, args []any, entries []metadata.Entry) (*types.Receipt, error) {
	op := "invoke " + method

	data, err := packCall(contractABI, method, args, entries)
	if err != nil {
		return nil, faults.New(faults.Transaction, op, err)
	}

	tx, err := iv.net.transact(ctx, iv.cfg.Tx, &address, data, nil)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			err = fmt.Errorf("%w: %s", ErrReverted, reason)
		}
		return nil, classify(faults.Transaction, op, err)
	}
	iv.logger.Info("invocation submitted", "method", method, "to", address.Hex(), "tx", tx.Hash().Hex())

	receipt, err := iv.net.WaitMined(ctx, tx.Hash(), iv.cfg.Wait)
	if err != nil {
		return nil, err
	}
	if receiptFailed(receipt) {
		return nil, faults.New(faults.Transaction, op, fmt.Errorf("%w: %w in block %s", ErrReverted, errReceiptFailed, receipt.BlockNumber))
	}

	iv.logger.Info("invocation confirmed",
		"method", method,
		"tx", receipt.TxHash.Hex(),
		"block", receipt.BlockNumber,
		"logs", len(receipt.Logs),
	)
	return receipt, nil
}

// packCall encodes the call data. String arguments are converted per the
// method's input types.
func packCall(contractABI abi.ABI, method string, args []any, entries []metadata.Entry) ([]byte, error) {
	m, ok := contractABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("method %q not found in ABI", method)
	}

	inputs := m.Inputs
	if len(inputs) > 0 && isEntryList(inputs[len(inputs)-1].Type) && len(args) == len(inputs)-1 {
		list, err := entryList(inputs[len(inputs)-1].Type, entries)
		if err != nil {
			return nil, err
		}
		coerced, err := CoerceArgs(inputs[:len(inputs)-1], args)
		if err != nil {
			return nil, err
		}
		return contractABI.Pack(method, append(coerced, list)...)
	}

	if len(entries) > 0 {
		return nil, fmt.Errorf("method %q takes no metadata entries", method)
	}
	coerced, err := CoerceArgs(inputs, args)
	if err != nil {
		return nil, err
	}
	return contractABI.Pack(method, coerced...)
}

// isEntryList matches tuple(string,bytes)[]
func isEntryList(t abi.Type) bool {
	if t.T != abi.SliceTy || t.Elem == nil || t.Elem.T != abi.TupleTy {
		return false
	}
	elems := t.Elem.TupleElems
	return len(elems) == 2 && elems[0].T == abi.StringTy && elems[1].T == abi.BytesTy
}

// entryList builds a slice of the struct type abi derives for the tuple,
// so field names match whatever the contract calls them.
func entryList(t abi.Type, entries []metadata.Entry) (any, error) {
	elemType := t.Elem.GetType()
	list := reflect.MakeSlice(reflect.SliceOf(elemType), len(entries), len(entries))
	for i, e := range entries {
		item := list.Index(i)
		if item.NumField() != 2 {
			return nil, fmt.Errorf("unexpected metadata tuple layout %s", elemType)
		}
		item.Field(0).SetString(e.Key)
		item.Field(1).SetBytes(e.Value)
	}
	return list.Interface(), nil
}

// revertReason extracts the Error(string) reason from a node error
func revertReason(err error) (string, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return "", false
	}
	raw, ok := de.ErrorData().(string)
	if !ok {
		return "", false
	}
	data, decErr := hexutil.Decode(raw)
	if decErr != nil {
		return "", false
	}
	if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
		return reason, true
	}
	if len(data) >= 4 {
		return "custom error " + hexutil.Encode(data[:4]), true
	}
	return "", false
}

// ParseABI parses a JSON ABI
func ParseABI(raw []byte) (abi.ABI, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return abi.ABI{}, errors.New("empty ABI")
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parsing ABI: %w", err)
	}
	return parsed, nil
}
