// Package foundry provides the Foundry builder for EVM contracts.
package foundry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/pendergraft/shipcheck/internal/chains"
)

const defaultOutDir = "out"

// Builder implements chains.Builder for Foundry projects
type Builder struct{}

// New creates a new Foundry builder
func New() *Builder {
	return &Builder{}
}

// Name returns the builder identifier
func (b *Builder) Name() string {
	return "foundry"
}

// DisplayName returns a human-readable name
func (b *Builder) DisplayName() string {
	return "Foundry"
}

// ConfigFile returns the config file name
func (b *Builder) ConfigFile() string {
	return "foundry.toml"
}

// Detect checks if a directory is a Foundry project
func (b *Builder) Detect(dir string) (bool, error) {
	configPath := filepath.Join(dir, b.ConfigFile())
	_, err := os.Stat(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// foundryConfig is the subset of foundry.toml needed to find artifacts
type foundryConfig struct {
	Profile map[string]struct {
		Out string `toml:"out"`
	} `toml:"profile"`
}

// OutDir returns the artifact directory of a Foundry project, honoring
// profile.default.out in foundry.toml.
func (b *Builder) OutDir(dir string) string {
	var cfg foundryConfig
	if _, err := toml.DecodeFile(filepath.Join(dir, b.ConfigFile()), &cfg); err == nil {
		if p, ok := cfg.Profile["default"]; ok && p.Out != "" {
			return filepath.Join(dir, p.Out)
		}
	}
	return filepath.Join(dir, defaultOutDir)
}

// Locate finds the artifact of contractName (out/{Source}.sol/{Contract}.json).
// When several sources define the same name, {Contract}.sol wins, then the first match.
func (b *Builder) Locate(dir string, contractName string) (string, error) {
	outDir := b.OutDir(dir)
	if _, err := os.Stat(outDir); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s does not exist - run 'forge build' first", chains.ErrArtifactNotFound, outDir)
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "*.sol", contractName+".json"))
	if err != nil {
		return "", fmt.Errorf("searching artifacts: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s in %s", chains.ErrArtifactNotFound, contractName, outDir)
	}

	for _, m := range matches {
		if filepath.Base(filepath.Dir(m)) == contractName+".sol" {
			return m, nil
		}
	}
	return matches[0], nil
}

// Parse parses a Foundry artifact file
func (b *Builder) Parse(artifactPath string) (*chains.Artifact, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	var raw FoundryArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}

	// Skip if no bytecode (interfaces, libraries without code)
	if !chains.HasBytecode(raw.Bytecode.Object) {
		return nil, fmt.Errorf("%w (likely an interface): %s", chains.ErrNoBytecode, artifactPath)
	}

	var metadata FoundryMetadata
	if raw.RawMetadata != "" {
		_ = json.Unmarshal([]byte(raw.RawMetadata), &metadata) // Non-fatal, continue without metadata
	}

	contractName := strings.TrimSuffix(filepath.Base(artifactPath), ".json")

	return &chains.Artifact{
		Name:             contractName,
		SourcePath:       getFirstKey(metadata.Settings.CompilationTarget),
		License:          metadata.Sources.FirstLicense(),
		ABI:              raw.ABI,
		Bytecode:         raw.Bytecode.Object,
		DeployedBytecode: raw.DeployedBytecode.Object,
		Compiler: chains.Compiler{
			Version:    metadata.Compiler.Version,
			EVMVersion: metadata.Settings.EVMVersion,
			ViaIR:      metadata.Settings.ViaIR,
			Optimizer: chains.OptimizerConfig{
				Enabled: metadata.Settings.Optimizer.Enabled,
				Runs:    metadata.Settings.Optimizer.Runs,
			},
		},
	}, nil
}

// FoundryArtifact represents the structure of a Foundry artifact JSON file
type FoundryArtifact struct {
	ABI              json.RawMessage `json:"abi"`
	Bytecode         BytecodeObject  `json:"bytecode"`
	DeployedBytecode BytecodeObject  `json:"deployedBytecode"`
	RawMetadata      string          `json:"rawMetadata"`
}

// BytecodeObject represents bytecode in a Foundry artifact
type BytecodeObject struct {
	Object string `json:"object"`
}

// FoundryMetadata represents the parsed rawMetadata field
type FoundryMetadata struct {
	Compiler CompilerMeta `json:"compiler"`
	Language string       `json:"language"`
	Settings SettingsMeta `json:"settings"`
	Sources  SourcesMeta  `json:"sources"`
}

// CompilerMeta contains compiler information
type CompilerMeta struct {
	Version string `json:"version"`
}

// SettingsMeta contains compiler settings
type SettingsMeta struct {
	CompilationTarget map[string]string `json:"compilationTarget"`
	EVMVersion        string            `json:"evmVersion"`
	Optimizer         OptimizerMeta     `json:"optimizer"`
	ViaIR             bool              `json:"viaIR"`
}

// OptimizerMeta contains optimizer settings
type OptimizerMeta struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// SourcesMeta contains source file information
type SourcesMeta map[string]SourceMeta

// SourceMeta contains individual source file info
type SourceMeta struct {
	License string `json:"license"`
}

// FirstLicense returns the first license found in sources
func (s SourcesMeta) FirstLicense() string {
	for _, src := range s {
		if src.License != "" {
			return src.License
		}
	}
	return ""
}

// getFirstKey returns the first key from a map
func getFirstKey(m map[string]string) string {
	for k := range m {
		return k
	}
	return ""
}
