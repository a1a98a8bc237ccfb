package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Identifier is the outcome of an extraction. Found is false for NotFound.
type Identifier struct {
	Value  *big.Int
	Found  bool
	Source string // strategy that produced (or failed to produce) the value
	Reason string // why nothing was found
}

// NotFound returns an absent identifier
func NotFound(source, reason string) Identifier {
	return Identifier{Source: source, Reason: reason}
}

// String returns the decimal value, or "unknown"
func (id Identifier) String() string {
	if !id.Found || id.Value == nil {
		return "unknown"
	}
	return id.Value.String()
}

// Caller issues read-only calls. *evm.Network implements it.
type Caller interface {
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// Analyzer applies a policy to finalized receipts
type Analyzer struct {
	policy Policy
	caller Caller
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer. caller may be nil unless policy is ByFollowupRead.
func NewAnalyzer(policy Policy, caller Caller, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{policy: policy, caller: caller, logger: logger}
}

// Extract recovers the identifier. It never fails: anything that prevents
// extraction yields NotFound and a warning.
func (a *Analyzer) Extract(ctx context.Context, contract common.Address, r *types.Receipt) Identifier {
	id := ExtractIdentifier(ctx, a.policy, a.caller, contract, r)
	if id.Found {
		a.logger.Info("identifier extracted", "identifier", id.Value.String(), "source", id.Source)
	} else {
		a.logger.Warn("identifier not found", "source", id.Source, "reason", id.Reason)
	}
	return id
}

// ExtractIdentifier applies policy to r.
func ExtractIdentifier(ctx context.Context, policy Policy, caller Caller, contract common.Address, r *types.Receipt) Identifier {
	switch p := policy.(type) {
	case ByEventTopic:
		if r == nil {
			return NotFound(p.Name(), "no receipt")
		}
		return fromLogs(p.Name(), r.Logs, func(l *types.Log) bool {
			return len(l.Topics) > 0 && l.Topics[0] == p.Topic
		})
	case ByFirstTopicLog:
		if r == nil {
			return NotFound(p.Name(), "no receipt")
		}
		return fromLogs(p.Name(), r.Logs, func(l *types.Log) bool {
			return len(l.Topics) > 0
		})
	case ByFollowupRead:
		return followup(ctx, p, caller, contract)
	case nil:
		return NotFound("none", "no extraction policy configured")
	default:
		return NotFound(policy.Name(), fmt.Sprintf("unsupported policy %T", policy))
	}
}

// fromLogs parses topics[1] of the first log accepted by match
func fromLogs(source string, logs []*types.Log, match func(*types.Log) bool) Identifier {
	if len(logs) == 0 {
		return NotFound(source, "receipt has no logs")
	}
	for i, l := range logs {
		if l == nil || !match(l) {
			continue
		}
		if len(l.Topics) < 2 {
			return NotFound(source, fmt.Sprintf("log %d has no indexed identifier topic", i))
		}
		return Identifier{Value: TopicToInt(l.Topics[1]), Found: true, Source: source}
	}
	return NotFound(source, "no matching log")
}

// TopicToInt interprets a 32-byte topic as a big-endian unsigned integer.
// Leading zero padding does not affect the value.
func TopicToInt(topic common.Hash) *big.Int {
	return new(big.Int).SetBytes(topic.Bytes())
}

func followup(ctx context.Context, p ByFollowupRead, caller Caller, contract common.Address) Identifier {
	source := p.Name()
	if p.Func == nil {
		return NotFound(source, "no follow-up method configured")
	}
	if caller == nil {
		return NotFound(source, "no caller for follow-up read")
	}

	input, err := p.Func.EncodeArgs()
	if err != nil {
		return NotFound(source, fmt.Sprintf("encoding %s: %v", p.Func.Signature, err))
	}
	out, err := caller.Call(ctx, ethereum.CallMsg{To: &contract, Data: input})
	if err != nil {
		return NotFound(source, fmt.Sprintf("calling %s: %v", p.Func.Signature, err))
	}

	values, err := p.Func.Returns.Unpack(out)
	if err != nil {
		return NotFound(source, fmt.Sprintf("decoding %s result: %v", p.Func.Signature, err))
	}
	if len(values) != 1 {
		return NotFound(source, fmt.Sprintf("%s returned %d values", p.Func.Signature, len(values)))
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return NotFound(source, fmt.Sprintf("%s returned %T, want uint256", p.Func.Signature, values[0]))
	}
	return Identifier{Value: v, Found: true, Source: source}
}
