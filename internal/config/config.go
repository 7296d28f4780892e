// Package config loads and validates KAIROS runtime configuration.
package config

import "time"

// Config is the umbrella configuration object produced by Initialize and
// threaded through the engine and its collaborators.
type Config struct {
	configDir string

	Port        string
	MetricsPort string

	VectorStore VectorStoreConfig
	Embedding   EmbeddingConfig
	KV          KVConfig

	ScoreThreshold           float64
	EnableGroupCollapse      bool
	CommentSemanticThreshold float64
	MaxRetries               int

	DefaultSpaceID  string
	SnapshotOnStart bool
	SnapshotDir     string
}

// VectorStoreConfig configures the vector database adapter.
type VectorStoreConfig struct {
	URL        string `validate:"required"`
	Collection string `validate:"required"`
	APIKey     string
}

// EmbeddingConfig configures the embedding adapter.
type EmbeddingConfig struct {
	URL   string `validate:"required"`
	Model string `validate:"required"`
	Dim   int    `validate:"required,min=1"`
}

// KVConfig configures the key/value store adapter.
type KVConfig struct {
	URL    string `validate:"required"`
	Prefix string
}

// ConfigDir returns the directory .env/kairos.yaml were loaded from, if any.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// ProofTTL is the TTL applied to nonce, proof, proof-hash, and retry keys
// in the proof store.
const ProofTTL = 1 * time.Hour

// SearchCacheTTL is the TTL applied to cached search responses.
const SearchCacheTTL = 5 * time.Minute
