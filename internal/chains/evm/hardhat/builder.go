// Package hardhat provides the Hardhat builder for EVM contracts.
package hardhat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pendergraft/shipcheck/internal/chains"
)

const artifactsDir = "artifacts"

// configFiles are the config names Hardhat accepts, in lookup order
var configFiles = []string{"hardhat.config.ts", "hardhat.config.js", "hardhat.config.cjs", "hardhat.config.mjs"}

// Builder implements chains.Builder for Hardhat projects
type Builder struct{}

// New creates a new Hardhat builder
func New() *Builder {
	return &Builder{}
}

// Name returns the builder identifier
func (b *Builder) Name() string {
	return "hardhat"
}

// DisplayName returns a human-readable name
func (b *Builder) DisplayName() string {
	return "Hardhat"
}

// ConfigFile returns the config file name
func (b *Builder) ConfigFile() string {
	return configFiles[0]
}

// Detect checks if a directory is a Hardhat project
func (b *Builder) Detect(dir string) (bool, error) {
	for _, name := range configFiles {
		_, err := os.Stat(filepath.Join(dir, name))
		if err == nil {
			return true, nil
		}
		if !os.IsNotExist(err) {
			return false, err
		}
	}
	return false, nil
}

// Locate finds the artifact of contractName under artifacts/ ({Source}.sol/{Contract}.json).
// Debug files and build-info are skipped.
func (b *Builder) Locate(dir string, contractName string) (string, error) {
	root := filepath.Join(dir, artifactsDir)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s does not exist - run 'npx hardhat compile' first", chains.ErrArtifactNotFound, root)
	}

	want := contractName + ".json"
	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == want {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("searching artifacts: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s in %s", chains.ErrArtifactNotFound, contractName, root)
	}

	for _, m := range matches {
		if filepath.Base(filepath.Dir(m)) == contractName+".sol" {
			return m, nil
		}
	}
	return matches[0], nil
}

// Parse parses a Hardhat artifact file. Compiler settings come from the
// build-info named by the artifact's buildInfoId (Hardhat 3) or referenced by
// the sibling .dbg.json file (Hardhat 2), when it exists.
func (b *Builder) Parse(artifactPath string) (*chains.Artifact, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	var raw HardhatArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}

	if !chains.HasBytecode(raw.Bytecode) {
		return nil, fmt.Errorf("%w (likely an interface): %s", chains.ErrNoBytecode, artifactPath)
	}

	name := raw.ContractName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(artifactPath), ".json")
	}

	artifact := &chains.Artifact{
		Name:             name,
		SourcePath:       raw.SourceName,
		ABI:              raw.ABI,
		Bytecode:         raw.Bytecode,
		DeployedBytecode: raw.DeployedBytecode,
	}

	var info *BuildInfo
	if raw.BuildInfoID != "" {
		info, err = readBuildInfoByID(artifactPath, raw.BuildInfoID)
	} else {
		info, err = readBuildInfo(artifactPath)
	}
	switch {
	case err == nil:
		artifact.Compiler = info.compiler()
	case errors.Is(err, fs.ErrNotExist):
		// Artifacts copied without their debug file or build-info carry no compiler info.
	default:
		return nil, err
	}

	return artifact, nil
}

// readBuildInfo follows {Contract}.dbg.json to the build-info file.
func readBuildInfo(artifactPath string) (*BuildInfo, error) {
	dbgPath := strings.TrimSuffix(artifactPath, ".json") + ".dbg.json"
	data, err := os.ReadFile(dbgPath)
	if err != nil {
		return nil, err
	}

	var dbg DebugFile
	if err := json.Unmarshal(data, &dbg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", dbgPath, err)
	}
	if dbg.BuildInfo == "" {
		return nil, fmt.Errorf("%s: %w", dbgPath, fs.ErrNotExist)
	}

	return parseBuildInfo(filepath.Join(filepath.Dir(dbgPath), filepath.FromSlash(dbg.BuildInfo)))
}

// readBuildInfoByID reads build-info/{id}.json from the artifacts root, the
// nearest ancestor of artifactPath holding a build-info directory.
func readBuildInfoByID(artifactPath, id string) (*BuildInfo, error) {
	dir := filepath.Dir(artifactPath)
	for {
		infoPath := filepath.Join(dir, "build-info", id+".json")
		if _, err := os.Stat(infoPath); err == nil {
			return parseBuildInfo(infoPath)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("build-info %s: %w", id, fs.ErrNotExist)
		}
		dir = parent
	}
}

func parseBuildInfo(infoPath string) (*BuildInfo, error) {
	data, err := os.ReadFile(infoPath)
	if err != nil {
		return nil, err
	}

	var info BuildInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing build-info %s: %w", infoPath, err)
	}
	return &info, nil
}

// HardhatArtifact represents the hh-sol-artifact-1 and hh3-artifact-1 formats
type HardhatArtifact struct {
	Format           string          `json:"_format"`
	ContractName     string          `json:"contractName"`
	SourceName       string          `json:"sourceName"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
	BuildInfoID      string          `json:"buildInfoId"` // Hardhat 3 only
}

// DebugFile represents {Contract}.dbg.json
type DebugFile struct {
	Format    string `json:"_format"`
	BuildInfo string `json:"buildInfo"` // relative to the debug file
}

// BuildInfo represents a Hardhat build-info file (hh-sol-build-info-1 or hh3-sol-build-info-1)
type BuildInfo struct {
	SolcVersion     string `json:"solcVersion"`     // Short: "0.8.24"
	SolcLongVersion string `json:"solcLongVersion"` // Full: "0.8.24+commit.e11b9ed9"
	Input           struct {
		Settings struct {
			EVMVersion string `json:"evmVersion"`
			ViaIR      bool   `json:"viaIR"`
			Optimizer  struct {
				Enabled bool `json:"enabled"`
				Runs    int  `json:"runs"`
			} `json:"optimizer"`
		} `json:"settings"`
	} `json:"input"`
}

func (bi *BuildInfo) compiler() chains.Compiler {
	version := bi.SolcLongVersion
	if version == "" {
		version = bi.SolcVersion
	}
	s := bi.Input.Settings
	return chains.Compiler{
		Version:    version,
		EVMVersion: s.EVMVersion,
		ViaIR:      s.ViaIR,
		Optimizer: chains.OptimizerConfig{
			Enabled: s.Optimizer.Enabled,
			Runs:    s.Optimizer.Runs,
		},
	}
}
