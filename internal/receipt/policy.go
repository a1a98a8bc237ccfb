// Package receipt recovers the identifier a registration assigned, either from
// the finalized receipt's logs or from a read call issued afterwards.
//
// The strategies are not reconciled. Under concurrent writers a follow-up
// count read can report someone else's registration, and the lenient log
// filter picks whatever event comes first.
package receipt

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

// Strategy names accepted by ParsePolicy
const (
	StrategyEvent        = "event"
	StrategyEventLenient = "event-lenient"
	StrategyFollowup     = "followup"
)

// Policy selects how an identifier is extracted. The implementations are
// ByEventTopic, ByFirstTopicLog and ByFollowupRead.
type Policy interface {
	Name() string
	policy()
}

// ByEventTopic takes the first log whose topic[0] equals Topic.
type ByEventTopic struct {
	Topic     common.Hash
	Signature string // for display only
}

// Name returns the strategy name
func (ByEventTopic) Name() string { return StrategyEvent }
func (ByEventTopic) policy()      {}

// ByFirstTopicLog takes the first log with any topics at all. A transaction
// emitting another event before the expected one yields the wrong identifier.
type ByFirstTopicLog struct{}

// Name returns the strategy name
func (ByFirstTopicLog) Name() string { return StrategyEventLenient }
func (ByFirstTopicLog) policy()      {}

// ByFollowupRead calls a view method returning uint256 right after the
// transaction and reports its result.
type ByFollowupRead struct {
	Func *w3.Func
}

// Name returns the strategy name
func (ByFollowupRead) Name() string { return StrategyFollowup }
func (ByFollowupRead) policy()      {}

// NewByEventTopic builds a strict policy from an event declaration such as
// "Registered(uint256 indexed agentId, string tokenURI, address indexed owner)"
// or from a raw 0x-prefixed topic hash.
func NewByEventTopic(signature string) (ByEventTopic, error) {
	signature = strings.TrimSpace(signature)
	if strings.HasPrefix(signature, "0x") {
		if len(signature) != 66 {
			return ByEventTopic{}, fmt.Errorf("invalid event topic %q: want 32 bytes", signature)
		}
		return ByEventTopic{Topic: common.HexToHash(signature), Signature: signature}, nil
	}
	event, err := w3.NewEvent(signature)
	if err != nil {
		return ByEventTopic{}, fmt.Errorf("parsing event signature %q: %w", signature, err)
	}
	return ByEventTopic{Topic: event.Topic0, Signature: event.Signature}, nil
}

// NewByFollowupRead builds a follow-up policy from a method signature such as "totalAgents()"
func NewByFollowupRead(method string) (ByFollowupRead, error) {
	fn, err := w3.NewFunc(strings.TrimSpace(method), "uint256")
	if err != nil {
		return ByFollowupRead{}, fmt.Errorf("parsing method signature %q: %w", method, err)
	}
	return ByFollowupRead{Func: fn}, nil
}

// ParsePolicy builds the policy for a configured strategy
func ParsePolicy(strategy, eventSignature, method string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategyEvent, "strict":
		return NewByEventTopic(eventSignature)
	case StrategyEventLenient, "lenient", "":
		return ByFirstTopicLog{}, nil
	case StrategyFollowup, "read":
		return NewByFollowupRead(method)
	default:
		return nil, fmt.Errorf("unknown identifier strategy %q (want %s, %s or %s)",
			strategy, StrategyEvent, StrategyEventLenient, StrategyFollowup)
	}
}
