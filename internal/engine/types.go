// Package engine implements the execution engine's search/begin/next/
// attest/mint/update/delete operations and their unified response
// contracts. It is the only package that composes the
// memory store, proof store, and proof engine into the agent-facing
// protocol.
package engine

import "github.com/kairos-dev/kairos/internal/proof"

// Metadata is attached to every operation response.
type Metadata struct {
	DurationMs int64 `json:"duration_ms"`
}

// Choice is one search result entry.
type Choice struct {
	URI        string   `json:"uri"`
	Label      string   `json:"label,omitempty"`
	ChainLabel string   `json:"chain_label,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	Role       string   `json:"role"`
	Tags       []string `json:"tags,omitempty"`
	NextAction string   `json:"next_action"`
}

// SearchResponse is search's unified response shape.
type SearchResponse struct {
	MustObey   bool     `json:"must_obey"`
	Message    string   `json:"message"`
	NextAction string   `json:"next_action"`
	Choices    []Choice `json:"choices"`
	Cached     bool     `json:"cached"`
	Metadata   Metadata `json:"metadata"`
}

// CurrentStep is the step payload begin/next hand back to the agent.
type CurrentStep struct {
	URI      string `json:"uri"`
	Content  string `json:"content"`
	MimeType string `json:"mimeType"`
}

// StepResponse is begin/next's shared response shape.
// Blocked outcomes populate ErrorCode/RetryCount and omit CurrentStep.
type StepResponse struct {
	MustObey    bool             `json:"must_obey"`
	CurrentStep *CurrentStep     `json:"current_step,omitempty"`
	Challenge   *proof.Challenge `json:"challenge,omitempty"`
	NextAction  string           `json:"next_action"`
	Message     string           `json:"message,omitempty"`
	ProofHash   string           `json:"proof_hash,omitempty"`
	ErrorCode   string           `json:"error_code,omitempty"`
	RetryCount  int64            `json:"retry_count,omitempty"`
	Metadata    Metadata         `json:"metadata"`
}

// AttestResult is one rated step.
type AttestResult struct {
	URI          string  `json:"uri"`
	Outcome      string  `json:"outcome"`
	QualityBonus float64 `json:"quality_bonus"`
	Message      string  `json:"message"`
	RatedAt      string  `json:"rated_at"`
}

// AttestResponse wraps attest's result envelope.
type AttestResponse struct {
	Results     []AttestResult `json:"results"`
	TotalRated  int            `json:"total_rated"`
	TotalFailed int            `json:"total_failed"`
	Metadata    Metadata       `json:"metadata"`
}

// MintItem describes one step produced by mint.
type MintItem struct {
	URI        string   `json:"uri"`
	MemoryUUID string   `json:"memory_uuid"`
	Label      string   `json:"label"`
	Tags       []string `json:"tags"`
}

// MintResponse is mint's success response shape.
type MintResponse struct {
	Status   string     `json:"status"`
	Items    []MintItem `json:"items"`
	Metadata Metadata   `json:"metadata"`
}

// OpResult is one URI's outcome within an update/delete batch.
type OpResult struct {
	URI     string `json:"uri"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// UpdateResponse is update's envelope.
type UpdateResponse struct {
	Results      []OpResult `json:"results"`
	TotalUpdated int        `json:"total_updated"`
	TotalFailed  int        `json:"total_failed"`
	Metadata     Metadata   `json:"metadata"`
}

// DeleteResponse is delete's envelope.
type DeleteResponse struct {
	Results      []OpResult `json:"results"`
	TotalDeleted int        `json:"total_deleted"`
	TotalFailed  int        `json:"total_failed"`
	Metadata     Metadata   `json:"metadata"`
}

// UpdateItem is one step's requested change within an update call.
type UpdateItem struct {
	URI     string
	Text    *string
	Label   *string
	Tags    []string
	HasTags bool
}
