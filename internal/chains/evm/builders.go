package evm

import (
	"github.com/pendergraft/shipcheck/internal/chains"
	"github.com/pendergraft/shipcheck/internal/chains/evm/foundry"
	"github.com/pendergraft/shipcheck/internal/chains/evm/hardhat"
)

// NewFoundryBuilder creates a new Foundry builder
func NewFoundryBuilder() chains.Builder {
	return foundry.New()
}

// NewHardhatBuilder creates a new Hardhat builder
func NewHardhatBuilder() chains.Builder {
	return hardhat.New()
}

// DefaultRegistry returns a registry with the built-in builders. Foundry is
// tried first when a project carries both config files.
func DefaultRegistry() *chains.Registry {
	return chains.NewRegistry(NewFoundryBuilder(), NewHardhatBuilder())
}
