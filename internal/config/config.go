// Package config provides configuration loading for docsearchd.
package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration for docsearchd.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Qdrant     QdrantConfig     `koanf:"qdrant"`
	Embeddings ProviderConfig   `koanf:"embeddings"`
	Completion ProviderConfig   `koanf:"completion"`
	Chunker    ChunkerConfig    `koanf:"chunker"`
	Storage    StorageConfig    `koanf:"storage"`
	RAG        RAGConfig        `koanf:"rag"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// QdrantConfig holds vector store connection settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string `koanf:"host"`

	// Port is the Qdrant gRPC port (NOT HTTP REST port).
	Port int `koanf:"port"`

	// Collection is the collection holding document chunk vectors.
	Collection string `koanf:"collection"`

	// VectorSize is the dimensionality of embeddings.
	// MUST match the embedding model output dimensions.
	VectorSize int `koanf:"vector_size"`

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool `koanf:"use_tls"`
}

// ProviderConfig holds settings for a model provider (embeddings or completion).
type ProviderConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// StorageConfig holds object storage settings.
type StorageConfig struct {
	// ObjectsDir is the directory holding raw uploaded file bytes,
	// keyed by storage key.
	ObjectsDir string `koanf:"objects_dir"`
}

// RAGConfig holds answer-generation settings.
type RAGConfig struct {
	// ExpandQueries enables completion-backed query expansion
	// during retrieval.
	ExpandQueries bool `koanf:"expand_queries"`
}

// TelemetryConfig holds OTLP trace/metric export settings. Disabled by
// default; the /metrics scrape endpoint works regardless.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"`
	Protocol     string  `koanf:"protocol"`
	Insecure     bool    `koanf:"insecure"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

// ChunkerConfig holds text chunking parameters.
type ChunkerConfig struct {
	TargetTokens    int     `koanf:"target_tokens"`
	MinChunkTokens  int     `koanf:"min_chunk_tokens"`
	OverlapFraction float64 `koanf:"overlap_fraction"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port: %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("%w: logging format must be 'json' or 'console', got %q", ErrInvalidConfig, c.Logging.Format)
	}
	if c.Qdrant.Host == "" {
		return fmt.Errorf("%w: qdrant host required", ErrInvalidConfig)
	}
	if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("%w: invalid qdrant port: %d", ErrInvalidConfig, c.Qdrant.Port)
	}
	if c.Qdrant.Collection == "" {
		return fmt.Errorf("%w: qdrant collection required", ErrInvalidConfig)
	}
	if c.Qdrant.VectorSize <= 0 {
		return fmt.Errorf("%w: qdrant vector size required", ErrInvalidConfig)
	}
	if c.Chunker.TargetTokens <= 0 {
		return fmt.Errorf("%w: chunker target tokens must be positive", ErrInvalidConfig)
	}
	if c.Chunker.MinChunkTokens < 0 || c.Chunker.MinChunkTokens >= c.Chunker.TargetTokens {
		return fmt.Errorf("%w: chunker min chunk tokens must be in [0, target_tokens)", ErrInvalidConfig)
	}
	if c.Chunker.OverlapFraction < 0 || c.Chunker.OverlapFraction >= 1 {
		return fmt.Errorf("%w: chunker overlap fraction must be in [0, 1)", ErrInvalidConfig)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8085
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = "document_chunks"
	}
	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = 1536 // text-embedding-3-small dimensions
	}

	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = "gpt-4o-mini"
	}

	if cfg.Chunker.TargetTokens == 0 {
		cfg.Chunker.TargetTokens = 1000
	}
	if cfg.Chunker.MinChunkTokens == 0 {
		cfg.Chunker.MinChunkTokens = 200
	}
	if cfg.Chunker.OverlapFraction == 0 {
		cfg.Chunker.OverlapFraction = 0.15
	}

	if cfg.Storage.ObjectsDir == "" {
		cfg.Storage.ObjectsDir = "./data/objects"
	}
}
