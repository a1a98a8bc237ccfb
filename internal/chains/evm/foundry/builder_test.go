package foundry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/shipcheck/internal/chains"
)

func writeArtifact(t *testing.T, path string, artifact map[string]any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	data, err := json.Marshal(artifact)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func registryArtifact() map[string]any {
	return map[string]any{
		"abi": []map[string]any{
			{"type": "function", "name": "register"},
		},
		"bytecode": map[string]any{
			"object": "0x608060405234801561001057600080fd5b50",
		},
		"deployedBytecode": map[string]any{
			"object": "0x6080604052600080fd",
		},
		"rawMetadata": `{"compiler":{"version":"0.8.24+commit.e11b9ed9"},"settings":{"compilationTarget":{"src/IdentityRegistry.sol":"IdentityRegistry"},"evmVersion":"shanghai","viaIR":true,"optimizer":{"enabled":true,"runs":200}},"sources":{"src/IdentityRegistry.sol":{"license":"MIT"}}}`,
	}
}

func TestBuilder_Metadata(t *testing.T) {
	b := New()

	assert.Equal(t, "foundry", b.Name())
	assert.Equal(t, "Foundry", b.DisplayName())
	assert.Equal(t, "foundry.toml", b.ConfigFile())
}

func TestBuilder_Detect(t *testing.T) {
	b := New()

	t.Run("with foundry.toml", func(t *testing.T) {
		dir := t.TempDir()
		err := os.WriteFile(filepath.Join(dir, "foundry.toml"), []byte("[profile.default]"), 0644)
		require.NoError(t, err)

		detected, err := b.Detect(dir)
		require.NoError(t, err)
		assert.True(t, detected)
	})

	t.Run("without foundry.toml", func(t *testing.T) {
		dir := t.TempDir()

		detected, err := b.Detect(dir)
		require.NoError(t, err)
		assert.False(t, detected)
	})
}

func TestBuilder_Locate(t *testing.T) {
	b := New()

	t.Run("default out dir", func(t *testing.T) {
		dir := t.TempDir()
		want := filepath.Join(dir, "out", "IdentityRegistry.sol", "IdentityRegistry.json")
		writeArtifact(t, want, registryArtifact())

		got, err := b.Locate(dir, "IdentityRegistry")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("custom out dir from foundry.toml", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "foundry.toml"), []byte("[profile.default]\nout = \"build\"\n"), 0644))
		want := filepath.Join(dir, "build", "IdentityRegistry.sol", "IdentityRegistry.json")
		writeArtifact(t, want, registryArtifact())

		got, err := b.Locate(dir, "IdentityRegistry")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("prefers matching source file", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifact(t, filepath.Join(dir, "out", "Aaa.sol", "IdentityRegistry.json"), registryArtifact())
		want := filepath.Join(dir, "out", "IdentityRegistry.sol", "IdentityRegistry.json")
		writeArtifact(t, want, registryArtifact())

		got, err := b.Locate(dir, "IdentityRegistry")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("missing out dir", func(t *testing.T) {
		_, err := b.Locate(t.TempDir(), "IdentityRegistry")
		require.Error(t, err)
		assert.ErrorIs(t, err, chains.ErrArtifactNotFound)
		assert.Contains(t, err.Error(), "forge build")
	})

	t.Run("missing contract", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifact(t, filepath.Join(dir, "out", "Other.sol", "Other.json"), registryArtifact())

		_, err := b.Locate(dir, "IdentityRegistry")
		assert.ErrorIs(t, err, chains.ErrArtifactNotFound)
	})
}

func TestBuilder_Parse(t *testing.T) {
	b := New()

	t.Run("valid artifact", func(t *testing.T) {
		dir := t.TempDir()
		artifactPath := filepath.Join(dir, "IdentityRegistry.json")
		writeArtifact(t, artifactPath, registryArtifact())

		result, err := b.Parse(artifactPath)
		require.NoError(t, err)
		assert.Equal(t, "IdentityRegistry", result.Name)
		assert.Equal(t, "src/IdentityRegistry.sol", result.SourcePath)
		assert.Equal(t, "MIT", result.License)
		assert.Contains(t, result.Bytecode, "0x608060")
		assert.Equal(t, "0x6080604052600080fd", result.DeployedBytecode)
		assert.Equal(t, "0.8.24+commit.e11b9ed9", result.Compiler.Version)
		assert.Equal(t, "shanghai", result.Compiler.EVMVersion)
		assert.True(t, result.Compiler.ViaIR)
		assert.Equal(t, chains.OptimizerConfig{Enabled: true, Runs: 200}, result.Compiler.Optimizer)
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		artifactPath := filepath.Join(dir, "Invalid.json")
		require.NoError(t, os.WriteFile(artifactPath, []byte("not json"), 0644))

		_, err := b.Parse(artifactPath)
		require.Error(t, err)
	})

	t.Run("interface (no bytecode)", func(t *testing.T) {
		dir := t.TempDir()
		artifactPath := filepath.Join(dir, "IIdentityRegistry.json")
		writeArtifact(t, artifactPath, map[string]any{
			"abi":      []map[string]any{{"type": "function", "name": "register"}},
			"bytecode": map[string]any{"object": "0x"},
		})

		_, err := b.Parse(artifactPath)
		require.Error(t, err)
		assert.ErrorIs(t, err, chains.ErrNoBytecode)
	})
}
