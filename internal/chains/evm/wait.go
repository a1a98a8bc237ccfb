package evm

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/pendergraft/shipcheck/internal/faults"
)

const (
	defaultPollInterval        = 2 * time.Second
	defaultFinalizationTimeout = 2 * time.Minute
)

// WaitOptions bounds the wait for a receipt
type WaitOptions struct {
	Timeout       time.Duration // default 2m
	PollInterval  time.Duration // default 2s
	Confirmations uint64        // blocks including the receipt's own, 0 and 1 are equivalent
}

// WaitMined polls for the receipt of hash until it exists and has enough
// confirmations. Expiry of opts.Timeout is a Timeout fault; cancellation of
// ctx by the caller is reported as Canceled (or Timeout for a caller deadline).
func (n *Network) WaitMined(ctx context.Context, hash common.Hash, opts WaitOptions) (*types.Receipt, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultFinalizationTimeout
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var receipt *types.Receipt
	for {
		if receipt == nil {
			r, err := n.Receipt(waitCtx, hash)
			// Not found and transient errors both mean "not yet"
			if err == nil && r != nil {
				receipt = r
				n.logger.Debug("receipt received", "tx", hash.Hex(), "block", r.BlockNumber, "status", r.Status)
			}
		}
		if receipt != nil {
			if opts.Confirmations <= 1 || receipt.BlockNumber == nil {
				return receipt, nil
			}
			head, err := n.BlockNumber(waitCtx)
			if err == nil && head+1 >= receipt.BlockNumber.Uint64()+opts.Confirmations {
				return receipt, nil
			}
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctxFault(ctx, "wait for "+hash.Hex(), ctx.Err())
			}
			return nil, faults.Newf(faults.Timeout, "wait for "+hash.Hex(), "finalization not observed within %s", timeout)
		case <-ticker.C:
		}
	}
}

// receiptFailed reports whether a mined receipt carries a failure status
func receiptFailed(r *types.Receipt) bool {
	return r.Status != types.ReceiptStatusSuccessful
}

var errReceiptFailed = errors.New("transaction failed on-chain (status 0)")
