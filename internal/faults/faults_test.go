package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	err := New(Deployment, "deploy IdentityRegistry", errors.New("insufficient funds for gas * price + value"))

	assert.True(t, errors.Is(err, ErrDeployment))
	assert.False(t, errors.Is(err, ErrTransaction))

	wrapped := fmt.Errorf("stage deploy: %w", err)
	assert.True(t, errors.Is(wrapped, ErrDeployment))
	assert.Equal(t, Deployment, KindOf(wrapped))
}

func TestError_Message(t *testing.T) {
	err := New(Verification, "verify 0xabc", errors.New("no code at address"))
	assert.Equal(t, "verification error: verify 0xabc: no code at address", err.Error())

	bare := &Error{Kind: Timeout}
	assert.Equal(t, "timeout error", bare.Error())
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Nil(t, As(nil))
	assert.Equal(t, "unknown", Kind(0).String())
}
