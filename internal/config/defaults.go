package config

// Built-in defaults, applied before environment overrides and validation.
const (
	DefaultPort        = "8090"
	DefaultMetricsPort = "9090"

	DefaultKVPrefix = "kb:"

	DefaultScoreThreshold           = 0.3
	DefaultEnableGroupCollapse      = true
	DefaultCommentSemanticThreshold = 0.25
	DefaultMaxRetries               = 3

	DefaultSpaceID = "public"

	DefaultEmbeddingDim = 768
)
