package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlOverlay mirrors the optional kairos.yaml file. Every field is a
// pointer/zero-valued so that mergo only overrides what the file sets;
// everything else falls through to the environment-derived Config.
type yamlOverlay struct {
	ScoreThreshold           *float64 `yaml:"score_threshold,omitempty"`
	EnableGroupCollapse      *bool    `yaml:"enable_group_collapse,omitempty"`
	CommentSemanticThreshold *float64 `yaml:"comment_semantic_threshold,omitempty"`
	MaxRetries               *int     `yaml:"max_retries,omitempty"`
	DefaultSpaceID           string   `yaml:"default_space_id,omitempty"`
	SnapshotDir              string   `yaml:"snapshot_dir,omitempty"`
}

// Initialize builds configuration from environment variables, optionally
// overlaid by <configDir>/kairos.yaml, then validates it.
//
// Steps:
//  1. Seed Config from built-in defaults
//  2. Apply environment variables
//  3. Overlay <configDir>/kairos.yaml, if present, via mergo
//  4. Validate
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg := fromEnv()
	cfg.configDir = configDir

	overlayPath := filepath.Join(configDir, "kairos.yaml")
	if data, err := os.ReadFile(overlayPath); err == nil {
		data = ExpandEnv(data)
		var overlay yamlOverlay
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return nil, NewLoadError("kairos.yaml", fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
		if err := applyOverlay(cfg, &overlay); err != nil {
			return nil, NewLoadError("kairos.yaml", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, NewLoadError("kairos.yaml", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("configuration initialized",
		"vector_store_collection", cfg.VectorStore.Collection,
		"embedding_model", cfg.Embedding.Model,
		"default_space_id", cfg.DefaultSpaceID)

	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Port:        getEnv("PORT", DefaultPort),
		MetricsPort: getEnv("METRICS_PORT", DefaultMetricsPort),

		VectorStore: VectorStoreConfig{
			URL:        os.Getenv("VECTOR_STORE_URL"),
			Collection: getEnv("VECTOR_STORE_COLLECTION", "kairos_memory"),
			APIKey:     os.Getenv("VECTOR_STORE_API_KEY"),
		},
		Embedding: EmbeddingConfig{
			URL:   os.Getenv("EMBEDDING_URL"),
			Model: getEnv("EMBEDDING_MODEL", "text-embedding"),
			Dim:   getEnvInt("EMBEDDING_DIM", DefaultEmbeddingDim),
		},
		KV: KVConfig{
			URL:    getEnv("KV_URL", "localhost:6379"),
			Prefix: getEnv("KV_PREFIX", DefaultKVPrefix),
		},

		ScoreThreshold:           getEnvFloat("SCORE_THRESHOLD", DefaultScoreThreshold),
		EnableGroupCollapse:      getEnvBool("ENABLE_GROUP_COLLAPSE", DefaultEnableGroupCollapse),
		CommentSemanticThreshold: getEnvFloat("COMMENT_SEMANTIC_THRESHOLD", DefaultCommentSemanticThreshold),
		MaxRetries:               getEnvInt("MAX_RETRIES", DefaultMaxRetries),

		DefaultSpaceID:  getEnv("DEFAULT_SPACE_ID", DefaultSpaceID),
		SnapshotOnStart: getEnvBool("SNAPSHOT_ON_START", false),
		SnapshotDir:     getEnv("SNAPSHOT_DIR", ""),
	}
}

func applyOverlay(cfg *Config, overlay *yamlOverlay) error {
	overrides := &Config{}
	if overlay.ScoreThreshold != nil {
		overrides.ScoreThreshold = *overlay.ScoreThreshold
	}
	if overlay.EnableGroupCollapse != nil {
		overrides.EnableGroupCollapse = *overlay.EnableGroupCollapse
	}
	if overlay.CommentSemanticThreshold != nil {
		overrides.CommentSemanticThreshold = *overlay.CommentSemanticThreshold
	}
	if overlay.MaxRetries != nil {
		overrides.MaxRetries = *overlay.MaxRetries
	}
	overrides.DefaultSpaceID = overlay.DefaultSpaceID
	overrides.SnapshotDir = overlay.SnapshotDir

	if err := mergo.Merge(cfg, overrides, mergo.WithOverride, mergo.WithoutDereference); err != nil {
		return err
	}
	// mergo skips zero values, so explicit false/0 settings are applied here.
	if overlay.EnableGroupCollapse != nil {
		cfg.EnableGroupCollapse = *overlay.EnableGroupCollapse
	}
	if overlay.ScoreThreshold != nil {
		cfg.ScoreThreshold = *overlay.ScoreThreshold
	}
	if overlay.CommentSemanticThreshold != nil {
		cfg.CommentSemanticThreshold = *overlay.CommentSemanticThreshold
	}
	if overlay.MaxRetries != nil {
		cfg.MaxRetries = *overlay.MaxRetries
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
