package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKairosEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT", "METRICS_PORT", "VECTOR_STORE_URL", "VECTOR_STORE_COLLECTION",
		"VECTOR_STORE_API_KEY", "EMBEDDING_URL", "EMBEDDING_MODEL", "EMBEDDING_DIM",
		"KV_URL", "KV_PREFIX", "SCORE_THRESHOLD", "ENABLE_GROUP_COLLAPSE",
		"COMMENT_SEMANTIC_THRESHOLD", "MAX_RETRIES", "DEFAULT_SPACE_ID",
		"SNAPSHOT_ON_START", "SNAPSHOT_DIR",
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestInitializeAppliesDefaults(t *testing.T) {
	clearKairosEnv(t)
	t.Setenv("VECTOR_STORE_URL", "localhost:6334")
	t.Setenv("EMBEDDING_URL", "http://localhost:8081")

	cfg, err := Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultSpaceID, cfg.DefaultSpaceID)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultEmbeddingDim, cfg.Embedding.Dim)
	assert.InDelta(t, DefaultScoreThreshold, cfg.ScoreThreshold, 1e-9)
}

func TestInitializeFailsWithoutRequiredFields(t *testing.T) {
	clearKairosEnv(t)
	_, err := Initialize(context.Background(), t.TempDir())
	require.Error(t, err)
}

func TestInitializeYAMLOverlay(t *testing.T) {
	clearKairosEnv(t)
	t.Setenv("VECTOR_STORE_URL", "localhost:6334")
	t.Setenv("EMBEDDING_URL", "http://localhost:8081")

	dir := t.TempDir()
	overlay := "score_threshold: 0.42\nmax_retries: 5\ndefault_space_id: team-a\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kairos.yaml"), []byte(overlay), 0o644))

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.InDelta(t, 0.42, cfg.ScoreThreshold, 1e-9)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "team-a", cfg.DefaultSpaceID)
}

func TestInitializeRejectsOutOfRangeThreshold(t *testing.T) {
	clearKairosEnv(t)
	t.Setenv("VECTOR_STORE_URL", "localhost:6334")
	t.Setenv("EMBEDDING_URL", "http://localhost:8081")
	t.Setenv("SCORE_THRESHOLD", "1.5")

	_, err := Initialize(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
}
