package receipt

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/shipcheck/internal/chains/evm/evmtest"
)

var (
	contract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	owner    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

const registeredDecl = "Registered(uint256 indexed agentId, string tokenURI, address indexed owner)"

func strict(t *testing.T) ByEventTopic {
	t.Helper()
	p, err := NewByEventTopic(registeredDecl)
	require.NoError(t, err)
	return p
}

type fakeCaller struct {
	out   []byte
	err   error
	calls []ethereum.CallMsg
}

func (f *fakeCaller) Call(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	f.calls = append(f.calls, msg)
	return f.out, f.err
}

func TestNewByEventTopic(t *testing.T) {
	p := strict(t)
	assert.Equal(t, evmtest.RegisteredTopic, p.Topic)

	raw, err := NewByEventTopic(evmtest.RegisteredTopic.Hex())
	require.NoError(t, err)
	assert.Equal(t, p.Topic, raw.Topic)

	_, err = NewByEventTopic("0x1234")
	assert.Error(t, err)

	_, err = NewByEventTopic("not an event")
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		strategy string
		want     string
		wantErr  bool
	}{
		{"event", StrategyEvent, false},
		{"strict", StrategyEvent, false},
		{"", StrategyEventLenient, false},
		{"event-lenient", StrategyEventLenient, false},
		{"followup", StrategyFollowup, false},
		{"guess", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			p, err := ParsePolicy(tt.strategy, registeredDecl, "totalAgents()")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}

func TestExtractIdentifier_ZeroLogs(t *testing.T) {
	policies := []Policy{strict(t), ByFirstTopicLog{}}

	for _, p := range policies {
		t.Run(p.Name(), func(t *testing.T) {
			for _, r := range []*types.Receipt{nil, {}, {Logs: []*types.Log{}}} {
				var id Identifier
				assert.NotPanics(t, func() {
					id = ExtractIdentifier(context.Background(), p, nil, contract, r)
				})
				assert.False(t, id.Found)
				assert.Nil(t, id.Value)
				assert.Equal(t, "unknown", id.String())
			}
		})
	}
}

func TestExtractIdentifier_PaddingInsensitive(t *testing.T) {
	var padded common.Hash
	padded[31] = 0x2a

	var explicit common.Hash
	copy(explicit[:], common.LeftPadBytes([]byte{0x2a}, 32))

	for _, topic := range []common.Hash{padded, explicit, common.BigToHash(big.NewInt(42))} {
		r := &types.Receipt{Logs: []*types.Log{{Topics: []common.Hash{evmtest.RegisteredTopic, topic}}}}

		id := ExtractIdentifier(context.Background(), strict(t), nil, contract, r)
		require.True(t, id.Found)
		assert.Equal(t, int64(42), id.Value.Int64())
	}

	allOnes := common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	assert.Equal(t, 256, TopicToInt(allOnes).BitLen())
	assert.Equal(t, 1, TopicToInt(allOnes).Sign(), "topics are unsigned")
}

func TestExtractIdentifier_MissingIndexedTopic(t *testing.T) {
	r := &types.Receipt{Logs: []*types.Log{{Topics: []common.Hash{evmtest.RegisteredTopic}}}}

	id := ExtractIdentifier(context.Background(), strict(t), nil, contract, r)
	assert.False(t, id.Found)
	assert.Contains(t, id.Reason, "no indexed identifier topic")
}

// Another event precedes Registered in the same receipt. The strict policy
// finds the registration; the lenient one returns the first log's topics[1]
// (7) instead.
func TestExtractIdentifier_StrictAndLenientDiverge(t *testing.T) {
	r := &types.Receipt{Logs: []*types.Log{
		{Address: contract, Topics: []common.Hash{evmtest.TransferTopic, common.BigToHash(big.NewInt(7)), common.BytesToHash(owner.Bytes())}},
		evmtest.RegisteredLog(contract, owner, 5),
	}}

	strictID := ExtractIdentifier(context.Background(), strict(t), nil, contract, r)
	require.True(t, strictID.Found)
	assert.Equal(t, int64(5), strictID.Value.Int64())
	assert.Equal(t, StrategyEvent, strictID.Source)

	lenientID := ExtractIdentifier(context.Background(), ByFirstTopicLog{}, nil, contract, r)
	require.True(t, lenientID.Found)
	assert.Equal(t, int64(7), lenientID.Value.Int64(), "lenient filter takes the first event with any topics")
	assert.NotEqual(t, strictID.Value, lenientID.Value)
}

func TestExtractIdentifier_LenientSkipsTopiclessLogs(t *testing.T) {
	r := &types.Receipt{Logs: []*types.Log{
		{Address: contract, Data: []byte{0x01}},
		evmtest.RegisteredLog(contract, owner, 9),
	}}

	id := ExtractIdentifier(context.Background(), ByFirstTopicLog{}, nil, contract, r)
	require.True(t, id.Found)
	assert.Equal(t, int64(9), id.Value.Int64())
}

func TestExtractIdentifier_StrictNoMatch(t *testing.T) {
	r := &types.Receipt{Logs: []*types.Log{evmtest.TransferLog(contract, owner, 1)}}

	id := ExtractIdentifier(context.Background(), strict(t), nil, contract, r)
	assert.False(t, id.Found)
	assert.Equal(t, "no matching log", id.Reason)
}

func TestExtractIdentifier_Followup(t *testing.T) {
	p, err := NewByFollowupRead("totalAgents()")
	require.NoError(t, err)

	t.Run("reads count", func(t *testing.T) {
		caller := &fakeCaller{out: common.BigToHash(big.NewInt(3)).Bytes()}

		id := ExtractIdentifier(context.Background(), p, caller, contract, &types.Receipt{})
		require.True(t, id.Found)
		assert.Equal(t, int64(3), id.Value.Int64())
		assert.Equal(t, StrategyFollowup, id.Source)

		require.Len(t, caller.calls, 1)
		assert.Equal(t, contract, *caller.calls[0].To)
		assert.Equal(t, p.Func.Selector[:], caller.calls[0].Data[:4])
	})

	t.Run("read failure is not fatal", func(t *testing.T) {
		caller := &fakeCaller{err: errors.New("execution reverted")}

		id := ExtractIdentifier(context.Background(), p, caller, contract, nil)
		assert.False(t, id.Found)
		assert.Contains(t, id.Reason, "execution reverted")
	})

	t.Run("malformed result", func(t *testing.T) {
		id := ExtractIdentifier(context.Background(), p, &fakeCaller{out: []byte{0x01}}, contract, nil)
		assert.False(t, id.Found)
	})

	t.Run("no caller", func(t *testing.T) {
		id := ExtractIdentifier(context.Background(), p, nil, contract, nil)
		assert.False(t, id.Found)
	})
}

func TestAnalyzer_LogsWarningOnNotFound(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	a := NewAnalyzer(strict(t), nil, logger)

	id := a.Extract(context.Background(), contract, &types.Receipt{})
	assert.False(t, id.Found)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "identifier not found")

	buf.Reset()
	id = a.Extract(context.Background(), contract, &types.Receipt{Logs: []*types.Log{evmtest.RegisteredLog(contract, owner, 1)}})
	assert.True(t, id.Found)
	assert.Contains(t, buf.String(), "level=INFO")
}
