package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 0.7, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.3, cfg.Search.BM25Weight)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 500, cfg.Search.ChunkSize)
	assert.Equal(t, 50, cfg.Search.ChunkOverlap)
	assert.Equal(t, 300, cfg.Search.CacheTTLSeconds)
	assert.Equal(t, 1000, cfg.Search.CacheMaxSize)

	assert.Equal(t, 10000, cfg.Embeddings.CacheCapacity)
	assert.Equal(t, 0.1, cfg.LLM.Temperature)
	assert.Equal(t, 30, cfg.LLM.TimeoutSeconds)

	assert.Equal(t, 0.6, cfg.Router.ConfidenceThreshold)
	assert.Equal(t, 0.3, cfg.Router.MultiIntentThreshold)

	assert.Equal(t, 24, cfg.Cache.TTLHours)
	assert.Equal(t, 0.92, cfg.Cache.SimilarityThreshold)
	assert.Equal(t, 100, cfg.Cache.SemanticScanLimit)

	assert.Equal(t, 10, cfg.Agents.HistoryMax)
	assert.Equal(t, 0.5, cfg.Escalation.ConfidenceThreshold)

	require.NoError(t, cfg.Validate())
}

func TestLoadNoFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Search.SemanticWeight)
	assert.Equal(t, "stdio", cfg.Server.Transport)
}

func TestLoadProjectConfig(t *testing.T) {
	dir := t.TempDir()
	content := `
paths:
  policies_dir: /srv/policies
search:
  top_k: 8
llm:
  model: mistral
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".onboardqa.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/srv/policies", cfg.Paths.PoliciesDir)
	assert.Equal(t, 8, cfg.Search.TopK)
	assert.Equal(t, "mistral", cfg.LLM.Model)
	// Untouched values keep defaults
	assert.Equal(t, 500, cfg.Search.ChunkSize)
	assert.Equal(t, 0.7, cfg.Search.SemanticWeight)
}

func TestLoadYmlExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".onboardqa.yml"), []byte("search:\n  top_k: 3\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Search.TopK)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".onboardqa.yaml"), []byte("search: [not a map"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ONBOARDQA_POLICIES_DIR", "/env/policies")
	t.Setenv("ONBOARDQA_SEMANTIC_WEIGHT", "0.6")
	t.Setenv("ONBOARDQA_BM25_WEIGHT", "0.4")
	t.Setenv("ONBOARDQA_LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "/env/policies", cfg.Paths.PoliciesDir)
	assert.Equal(t, 0.6, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.4, cfg.Search.BM25Weight)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestValidateWeightSum(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.SemanticWeight = 0.9
	cfg.Search.BM25Weight = 0.3

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must equal 1.0")
}

func TestValidateWeightRange(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.SemanticWeight = 1.5
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Search.BM25Weight = -0.1
	assert.Error(t, cfg.Validate())
}

func TestValidateChunkOverlap(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.ChunkOverlap = 500

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestValidateProviders(t *testing.T) {
	cfg := NewConfig()
	cfg.Embeddings.Provider = "openai"
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Embeddings.Provider = "static"
	assert.NoError(t, cfg.Validate())

	cfg = NewConfig()
	cfg.LLM.Provider = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestValidateTransportAndLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.Transport = "http"
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Server.LogLevel = "trace"
	assert.Error(t, cfg.Validate())
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".onboardqa.yaml")

	src := NewConfig()
	src.Search.TopK = 7
	src.Paths.PoliciesDir = "custom/policies"
	require.NoError(t, src.WriteYAML(path))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.TopK)
	assert.Equal(t, "custom/policies", cfg.Paths.PoliciesDir)
}
