package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "document_chunks", cfg.Qdrant.Collection)
	assert.Equal(t, 1536, cfg.Qdrant.VectorSize)
	assert.Equal(t, 1000, cfg.Chunker.TargetTokens)
	assert.Equal(t, 200, cfg.Chunker.MinChunkTokens)
	assert.InDelta(t, 0.15, cfg.Chunker.OverlapFraction, 1e-9)
	assert.Equal(t, "./data/objects", cfg.Storage.ObjectsDir)
	assert.False(t, cfg.RAG.ExpandQueries)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
qdrant:
  host: qdrant.internal
  collection: docs_test
chunker:
  target_tokens: 500
  min_chunk_tokens: 100
rag:
  expand_queries: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, "docs_test", cfg.Qdrant.Collection)
	assert.Equal(t, 500, cfg.Chunker.TargetTokens)
	assert.Equal(t, 100, cfg.Chunker.MinChunkTokens)
	assert.True(t, cfg.RAG.ExpandQueries)

	// Unset fields still get defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
`)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("QDRANT_VECTOR_SIZE", "768")
	t.Setenv("EMBEDDINGS_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 768, cfg.Qdrant.VectorSize)
	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey.Value())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8085, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad server port", func(c *Config) { c.Server.Port = -1 }},
		{"bad logging format", func(c *Config) { c.Logging.Format = "xml" }},
		{"missing qdrant host", func(c *Config) { c.Qdrant.Host = "" }},
		{"missing collection", func(c *Config) { c.Qdrant.Collection = "" }},
		{"zero vector size", func(c *Config) { c.Qdrant.VectorSize = -1 }},
		{"min chunk exceeds target", func(c *Config) { c.Chunker.MinChunkTokens = 2000 }},
		{"overlap out of range", func(c *Config) { c.Chunker.OverlapFraction = 1.5 }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	secret := Secret("sk-super-secret")

	assert.Equal(t, "[REDACTED]", secret.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", secret))
	assert.Equal(t, "sk-super-secret", secret.Value())
	assert.True(t, secret.IsSet())

	data, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: secret})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-super-secret")

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}
