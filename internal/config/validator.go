package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct-tag validation over the configuration's nested
// sub-configs and applies KAIROS-specific range checks (score threshold,
// comment threshold, retry bound) that struct tags alone can't express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg.VectorStore); err != nil {
		return NewValidationError("vector_store", "", err)
	}
	if err := validate.Struct(cfg.Embedding); err != nil {
		return NewValidationError("embedding", "", err)
	}
	if err := validate.Struct(cfg.KV); err != nil {
		return NewValidationError("kv", "", err)
	}

	if cfg.ScoreThreshold < 0 || cfg.ScoreThreshold > 1 {
		return NewValidationError("search", "score_threshold",
			fmt.Errorf("must be in [0,1], got %v", cfg.ScoreThreshold))
	}
	if cfg.CommentSemanticThreshold < 0 || cfg.CommentSemanticThreshold > 1 {
		return NewValidationError("proof", "comment_semantic_threshold",
			fmt.Errorf("must be in [0,1], got %v", cfg.CommentSemanticThreshold))
	}
	if cfg.MaxRetries < 1 {
		return NewValidationError("proof", "max_retries",
			fmt.Errorf("must be >= 1, got %d", cfg.MaxRetries))
	}
	if cfg.DefaultSpaceID == "" {
		return NewValidationError("search", "default_space_id", fmt.Errorf("must not be empty"))
	}

	return nil
}
