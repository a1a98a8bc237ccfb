// Package chains provides the artifact model and the builder registry used to
// locate compiled contracts produced by EVM build tools (Foundry, Hardhat).
package chains

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrArtifactNotFound is returned when no artifact exists for a contract name.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrNoBuilder is returned when no registered builder recognizes a project.
	ErrNoBuilder = errors.New("no supported builder detected")
	// ErrNoBytecode is returned for artifacts without creation code (interfaces, abstract contracts).
	ErrNoBytecode = errors.New("contract has no bytecode")
)

// Builder parses artifacts from a specific build tool
type Builder interface {
	// Metadata
	Name() string        // "foundry", "hardhat"
	DisplayName() string // "Foundry", "Hardhat"

	// Detection
	Detect(dir string) (bool, error)
	ConfigFile() string // "foundry.toml", "hardhat.config.ts"

	// Artifact handling
	Locate(dir string, contractName string) (string, error)
	Parse(artifactPath string) (*Artifact, error)
}

// Artifact is a compiled contract ready to deploy
type Artifact struct {
	Name             string          `json:"name"`
	SourcePath       string          `json:"sourcePath"`
	License          string          `json:"license,omitempty"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
	Compiler         Compiler        `json:"compiler"`
	Builder          string          `json:"builder"`
	Path             string          `json:"path"`
}

// Compiler contains compiler details recorded in the artifact
type Compiler struct {
	Version    string          `json:"version"` // "0.8.24+commit.e11b9ed9"
	Optimizer  OptimizerConfig `json:"optimizer"`
	EVMVersion string          `json:"evmVersion"` // "paris", "shanghai"
	ViaIR      bool            `json:"viaIR"`
}

// OptimizerConfig contains optimizer settings
type OptimizerConfig struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// HasBytecode reports whether a hex bytecode string carries any code.
func HasBytecode(code string) bool {
	code = strings.TrimSpace(code)
	return code != "" && code != "0x"
}

// Registry holds the available builders in detection order
type Registry struct {
	builders []Builder
}

// NewRegistry creates a registry with the given builders
func NewRegistry(builders ...Builder) *Registry {
	r := &Registry{}
	for _, b := range builders {
		r.Register(b)
	}
	return r
}

// Register adds a builder. A builder with the same name is replaced.
func (r *Registry) Register(b Builder) {
	for i, existing := range r.builders {
		if existing.Name() == b.Name() {
			r.builders[i] = b
			return
		}
	}
	r.builders = append(r.builders, b)
}

// Get retrieves a builder by name
func (r *Registry) Get(name string) (Builder, bool) {
	for _, b := range r.builders {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

// List returns all registered builders
func (r *Registry) List() []Builder {
	out := make([]Builder, len(r.builders))
	copy(out, r.builders)
	return out
}

func (r *Registry) names() []string {
	var names []string
	for _, b := range r.List() {
		names = append(names, b.Name())
	}
	return names
}

// Detect returns the first builder that recognizes dir
func (r *Registry) Detect(dir string) (Builder, error) {
	for _, b := range r.builders {
		detected, err := b.Detect(dir)
		if err != nil {
			continue
		}
		if detected {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w in %s", ErrNoBuilder, dir)
}

// Resolve locates and parses the artifact for contractName under dir.
// An empty builderName means auto-detect.
func (r *Registry) Resolve(dir, builderName, contractName string) (*Artifact, error) {
	var (
		b   Builder
		err error
	)
	if builderName == "" || builderName == "auto" {
		b, err = r.Detect(dir)
		if err != nil {
			return nil, err
		}
	} else {
		var ok bool
		b, ok = r.Get(builderName)
		if !ok {
			return nil, fmt.Errorf("unknown builder %q (available: %s)", builderName, strings.Join(r.names(), ", "))
		}
	}

	path, err := b.Locate(dir, contractName)
	if err != nil {
		return nil, err
	}

	artifact, err := b.Parse(path)
	if err != nil {
		return nil, err
	}
	artifact.Builder = b.Name()
	artifact.Path = path
	return artifact, nil
}
