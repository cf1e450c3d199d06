package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, "extractive", cfg.Composer.Type)
	assert.Equal(t, 5, cfg.Query.TopK)
	assert.InDelta(t, 0.9, cfg.Analysis.RequiredFillThreshold, 1e-9)
	assert.InDelta(t, 0.8, cfg.Analysis.DeriveThreshold, 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestLoadAppliesSectionDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bimrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedder:
  type: openai
vector_store:
  type: qdrant
composer:
  type: gemini
query:
  top_k: 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, 4, cfg.Embedder.OpenAI.Workers)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "localhost:6334", cfg.VectorStore.Qdrant.Addr)
	assert.Equal(t, "bim_elements", cfg.VectorStore.Qdrant.Collection)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Composer.APIKeyEnv)
	assert.Equal(t, 3, cfg.Query.TopK)
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("query: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.VectorStore.Type = "sqlite"
	cfg.VectorStore.SQLite = &SQLiteConfig{Path: "x.db"}
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "x.db", got.VectorStore.SQLite.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"embedder", func(c *AppConfig) { c.Embedder.Type = "bert" }},
		{"store", func(c *AppConfig) { c.VectorStore.Type = "chroma" }},
		{"composer", func(c *AppConfig) { c.Composer.Type = "claude" }},
		{"top_k", func(c *AppConfig) { c.Query.TopK = -1 }},
		{"threshold", func(c *AppConfig) { c.Analysis.DeriveThreshold = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
