package evm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustType(t *testing.T, name string) abi.Type {
	t.Helper()
	ty, err := abi.NewType(name, "", nil)
	require.NoError(t, err)
	return ty
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		typ     string
		in      string
		want    any
		wantErr bool
	}{
		{"string", "hello", "hello", false},
		{"bool", "true", true, false},
		{"bool", "maybe", nil, true},
		{"address", "0x5FbDB2315678afecb367f032d93F642f64180aa3", common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), false},
		{"address", "0x1234", nil, true},
		{"uint8", "255", uint8(255), false},
		{"uint8", "256", nil, true},
		{"uint64", "0x10", uint64(16), false},
		{"uint256", "1000000000000000000", new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil), false},
		{"uint256", "-1", nil, true},
		{"int32", "-5", int32(-5), false},
		{"int256", "-5", big.NewInt(-5), false},
		{"bytes", "0xdeadbeef", []byte{0xde, 0xad, 0xbe, 0xef}, false},
		{"bytes4", "0xdeadbeef", [4]byte{0xde, 0xad, 0xbe, 0xef}, false},
		{"bytes4", "0xdead", nil, true},
		{"uint256", "ten", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.in, func(t *testing.T) {
			got, err := coerce(mustType(t, tt.typ), tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceArgs(t *testing.T) {
	inputs := abi.Arguments{
		{Name: "owner", Type: mustType(t, "address")},
		{Name: "cap", Type: mustType(t, "uint256")},
	}

	t.Run("mixed typed and string values", func(t *testing.T) {
		out, err := CoerceArgs(inputs, []any{common.Address{1}, "7"})
		require.NoError(t, err)
		assert.Equal(t, common.Address{1}, out[0])
		assert.Equal(t, big.NewInt(7), out[1])
	})

	t.Run("named error", func(t *testing.T) {
		_, err := CoerceArgs(inputs, []any{"nope", "7"})
		assert.ErrorContains(t, err, "argument owner (address)")
	})

	t.Run("count mismatch", func(t *testing.T) {
		_, err := CoerceArgs(inputs, []any{"7"})
		assert.ErrorContains(t, err, "mismatch")
	})
}
