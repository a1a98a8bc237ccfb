package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const defaultGasMultiplier = 1.2

// ErrInsufficientFunds marks a rejection because the sender cannot pay for the transaction.
var ErrInsufficientFunds = errors.New("insufficient funds")

// TxOptions controls gas and fees of submitted transactions. Zero values mean "ask the node".
type TxOptions struct {
	GasLimit             uint64
	GasMultiplier        float64 // applied to estimates, default 1.2
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// transact estimates, prices, signs and submits a transaction from the network's
// key. A nil to creates a contract. Returned errors from the node are wrapped
// but not classified; reads that fail are Connectivity faults.
func (n *Network) transact(ctx context.Context, opts TxOptions, to *common.Address, data []byte, value *big.Int) (*types.Transaction, error) {
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := n.Nonce(ctx)
	if err != nil {
		return nil, err
	}

	gas := opts.GasLimit
	if gas == 0 {
		estimated, err := n.EstimateGas(ctx, ethereum.CallMsg{From: n.from, To: to, Data: data, Value: value})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", withFundsHint(err))
		}
		mult := opts.GasMultiplier
		if mult <= 0 {
			mult = defaultGasMultiplier
		}
		gas = uint64(float64(estimated) * mult)
	}

	tx, err := n.buildTx(ctx, opts, nonce, to, gas, data, value)
	if err != nil {
		return nil, err
	}

	signed, err := n.SignTx(tx)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := n.Send(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", withFundsHint(err))
	}

	n.logger.Debug("transaction submitted",
		"tx", signed.Hash().Hex(),
		"nonce", nonce,
		"gas", gas,
		"type", signed.Type(),
	)
	return signed, nil
}

// buildTx prices an unsigned transaction: EIP-1559 when the head block has a
// base fee, legacy otherwise.
func (n *Network) buildTx(ctx context.Context, opts TxOptions, nonce uint64, to *common.Address, gas uint64, data []byte, value *big.Int) (*types.Transaction, error) {
	baseFee, err := n.HeadBaseFee(ctx)
	if err != nil {
		return nil, err
	}

	if baseFee == nil {
		price := opts.MaxFeePerGas
		if price == nil {
			if price, err = n.SuggestGasPrice(ctx); err != nil {
				return nil, err
			}
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       to,
			GasPrice: price,
			Gas:      gas,
			Value:    value,
			Data:     data,
		}), nil
	}

	tip := opts.MaxPriorityFeePerGas
	if tip == nil {
		if tip, err = n.SuggestGasTipCap(ctx); err != nil {
			return nil, err
		}
	}
	feeCap := opts.MaxFeePerGas
	if feeCap == nil {
		feeCap = new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)
	}
	if tip.Cmp(feeCap) > 0 {
		tip = new(big.Int).Set(feeCap)
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   n.chainID,
		Nonce:     nonce,
		To:        to,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		Value:     value,
		Data:      data,
	}), nil
}

// withFundsHint tags node errors that report a balance shortfall
func withFundsHint(err error) error {
	if err == nil || errors.Is(err, ErrInsufficientFunds) {
		return err
	}
	if strings.Contains(strings.ToLower(err.Error()), "insufficient funds") {
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	}
	return err
}
