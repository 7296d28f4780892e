// Package proofengine builds per-step proof-of-work challenges, validates
// submitted solutions against the hash-chain and nonce invariants, and
// escalates retries on repeated failure. Expected outcomes (accepted or
// blocked) come back in a Result; only infrastructure failures are errors.
package proofengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kairos-dev/kairos/internal/embedding"
	"github.com/kairos-dev/kairos/internal/memory"
	"github.com/kairos-dev/kairos/internal/proof"
	"github.com/kairos-dev/kairos/internal/proofstore"
)

// Error codes surfaced at the API boundary.
const (
	ErrMissingField       = "MISSING_FIELD"
	ErrNonceMismatch      = "NONCE_MISMATCH"
	ErrProofHashMismatch  = "PROOF_HASH_MISMATCH"
	ErrTypeMismatch       = "TYPE_MISMATCH"
	ErrCommentTooShort    = "COMMENT_TOO_SHORT"
	ErrCommentIrrelevant  = "COMMENT_IRRELEVANT"
	ErrCommandFailed      = "COMMAND_FAILED"
	ErrMaxRetriesExceeded = "MAX_RETRIES_EXCEEDED"
)

// minBodyLenForRelevanceCheck is the trimmed step-body length from which a
// comment proof is also checked for semantic relevance.
const minBodyLenForRelevanceCheck = 20

// maxBodyLenForRelevanceCheck truncates the body before embedding it.
const maxBodyLenForRelevanceCheck = 8000

// Outcome classifies a Validate call's result.
type Outcome int

const (
	Accepted Outcome = iota
	Blocked
)

// Result is Validate's return value. Failed outcomes (infrastructure
// errors) are reported through Validate's error return instead, so Result
// only ever represents Accepted or Blocked.
type Result struct {
	Outcome    Outcome
	ProofHash  string
	ErrorCode  string
	MustObey   bool
	RetryCount int64
	Challenge  *proof.Challenge
	NextAction string
}

// Engine builds challenges and validates solutions.
type Engine struct {
	store             *proofstore.Store
	embedder          embedding.Embedder
	commentThreshold  float64
	maxRetries        int64
	logger            *slog.Logger
}

// New builds an Engine. commentThreshold and maxRetries come from
// configuration.
func New(store *proofstore.Store, embedder embedding.Embedder, commentThreshold float64, maxRetries int64) *Engine {
	return &Engine{
		store:            store,
		embedder:         embedder,
		commentThreshold: commentThreshold,
		maxRetries:       maxRetries,
		logger:           slog.Default(),
	}
}

// BuildChallenge issues a fresh nonce for step and returns the challenge
// describing how to prove it.
func (e *Engine) BuildChallenge(ctx context.Context, step memory.Step, expectedPrevHash string) (proof.Challenge, error) {
	nonce, err := e.store.SetNonce(ctx, step.UUID)
	if err != nil {
		return proof.Challenge{}, fmt.Errorf("proofengine: issue nonce: %w", err)
	}

	def := step.ProofDef
	challenge := proof.Challenge{
		Nonce:     nonce,
		ProofHash: expectedPrevHash,
	}
	if def == nil {
		challenge.Type = proof.TypeUserInput
		challenge.Description = fmt.Sprintf("Confirm completion of %q.", step.Label)
		return challenge, nil
	}

	challenge.Type = def.Type
	challenge.Description = fmt.Sprintf("Prove completion of %q via %s.", step.Label, def.Type)
	challenge.Shell = def.Shell
	challenge.MCP = def.MCP
	challenge.UserInput = def.UserInput
	challenge.Comment = def.Comment
	return challenge, nil
}

// Validate checks a submitted solution against the step's proof
// requirements and the hash-chain/nonce invariants, nonce first then
// hash then the proof type's own check. Infrastructure errors (KV/embedding
// failures unrelated to the submission's validity) are returned as the
// error value; every other outcome is carried in the returned Result.
func (e *Engine) Validate(ctx context.Context, step memory.Step, solution proof.Solution, expectedPrevHash string) (Result, error) {
	storedNonce, err := e.store.GetNonce(ctx, step.UUID)
	if err != nil && !errors.Is(err, proofstore.ErrNoNonce) {
		return Result{}, fmt.Errorf("proofengine: load nonce: %w", err)
	}
	if solution.Nonce == "" || solution.Nonce != storedNonce {
		return e.blocked(ctx, step, expectedPrevHash, ErrNonceMismatch)
	}

	prevHash := solution.EffectiveProofHash()
	if prevHash == "" {
		return e.blocked(ctx, step, expectedPrevHash, ErrMissingField)
	}
	if prevHash != expectedPrevHash {
		return e.blocked(ctx, step, expectedPrevHash, ErrProofHashMismatch)
	}

	defType := proof.TypeUserInput
	if step.ProofDef != nil {
		defType = step.ProofDef.Type
	}
	if solution.Type != defType {
		return e.blocked(ctx, step, expectedPrevHash, ErrTypeMismatch)
	}

	record, errorCode, err := e.buildRecord(ctx, step, solution)
	if err != nil {
		return Result{}, err
	}
	if errorCode != "" {
		return e.blocked(ctx, step, expectedPrevHash, errorCode)
	}

	if step.ProofDef != nil && step.ProofDef.Required && record.Status == proof.StatusFailed {
		return e.blocked(ctx, step, expectedPrevHash, ErrCommandFailed)
	}

	if existing, err := e.store.GetResult(ctx, step.UUID); err == nil && existing.Status == proof.StatusSuccess {
		hash, herr := e.store.GetProofHash(ctx, step.UUID)
		if herr != nil {
			return Result{}, fmt.Errorf("proofengine: load existing hash: %w", herr)
		}
		return Result{Outcome: Accepted, ProofHash: hash}, nil
	}

	hash, err := proof.Hash(record)
	if err != nil {
		return Result{}, fmt.Errorf("proofengine: hash record: %w", err)
	}
	if err := e.store.SaveResult(ctx, step.UUID, record); err != nil {
		return Result{}, fmt.Errorf("proofengine: save result: %w", err)
	}
	if err := e.store.SetProofHash(ctx, step.UUID, hash); err != nil {
		return Result{}, fmt.Errorf("proofengine: save hash: %w", err)
	}
	if err := e.store.ResetRetry(ctx, step.UUID); err != nil {
		return Result{}, fmt.Errorf("proofengine: reset retry: %w", err)
	}
	if _, err := e.store.ConsumeNonce(ctx, step.UUID); err != nil {
		return Result{}, fmt.Errorf("proofengine: consume nonce: %w", err)
	}

	return Result{Outcome: Accepted, ProofHash: hash}, nil
}

// buildRecord validates the type-specific content of solution and returns
// the resulting ProofRecord, or a non-empty error code when content is
// invalid.
func (e *Engine) buildRecord(ctx context.Context, step memory.Step, solution proof.Solution) (proof.Record, string, error) {
	record := proof.Record{
		ResultID:   uuid.NewString(),
		Type:       solution.Type,
		ExecutedAt: time.Now().UTC().Format(time.RFC3339),
	}

	switch solution.Type {
	case proof.TypeShell:
		if solution.Shell == nil || solution.Shell.ExitCode == nil {
			return proof.Record{}, ErrMissingField, nil
		}
		record.ShellExitCode = solution.Shell.ExitCode
		record.ShellStdout = solution.Shell.Stdout
		record.ShellStderr = solution.Shell.Stderr
		record.ShellDurationSecs = solution.Shell.DurationSecond
		record.Status = proof.StatusFailed
		if *solution.Shell.ExitCode == 0 {
			record.Status = proof.StatusSuccess
		}
		return record, "", nil

	case proof.TypeMCP:
		if solution.MCP == nil {
			return proof.Record{}, ErrMissingField, nil
		}
		record.MCPToolName = solution.MCP.ToolName
		record.MCPSuccess = solution.MCP.Success
		record.MCPResult = solution.MCP.Result
		record.Status = proof.StatusFailed
		if solution.MCP.Success {
			record.Status = proof.StatusSuccess
		}
		return record, "", nil

	case proof.TypeUserInput:
		if solution.UserInput == nil || solution.UserInput.Confirmation == "" {
			return proof.Record{}, ErrMissingField, nil
		}
		record.UserInputConfirmation = solution.UserInput.Confirmation
		record.UserInputTimestamp = solution.UserInput.Timestamp
		record.Status = proof.StatusSuccess
		return record, "", nil

	case proof.TypeComment:
		if solution.Comment == nil || solution.Comment.Text == "" {
			return proof.Record{}, ErrMissingField, nil
		}
		minLen := proof.DefaultCommentMinLength
		if step.ProofDef != nil && step.ProofDef.Comment != nil && step.ProofDef.Comment.MinLength > 0 {
			minLen = step.ProofDef.Comment.MinLength
		}
		text := solution.Comment.Text
		if len(text) < minLen {
			return proof.Record{}, ErrCommentTooShort, nil
		}
		if len(strings.TrimSpace(step.Text)) >= minBodyLenForRelevanceCheck {
			relevant, err := e.isCommentRelevant(ctx, text, step.Text)
			if err != nil {
				e.logger.Warn("proofengine: relevance check failed open", "error", err, "step", step.UUID)
			} else if !relevant {
				return proof.Record{}, ErrCommentIrrelevant, nil
			}
		}
		record.CommentText = text
		record.Status = proof.StatusSuccess
		return record, "", nil

	default:
		return proof.Record{}, ErrTypeMismatch, nil
	}
}

// isCommentRelevant embeds the comment and the (truncated) step body and
// compares their cosine similarity against the configured threshold.
// An embedding failure is reported via err so the caller can fail open.
func (e *Engine) isCommentRelevant(ctx context.Context, comment, body string) (bool, error) {
	if len(body) > maxBodyLenForRelevanceCheck {
		body = body[:maxBodyLenForRelevanceCheck]
	}
	vectors, err := e.embedder.EmbedBatch(ctx, []string{comment, body})
	if err != nil {
		return true, err
	}
	if len(vectors) != 2 {
		return true, fmt.Errorf("proofengine: expected 2 embeddings, got %d", len(vectors))
	}
	return embedding.Cosine(vectors[0], vectors[1]) >= e.commentThreshold, nil
}

// blocked increments step's retry counter and shapes the blocked response,
// flipping must_obey once the retry count exceeds the configured bound.
func (e *Engine) blocked(ctx context.Context, step memory.Step, expectedPrevHash, errorCode string) (Result, error) {
	retries, err := e.store.IncrementRetry(ctx, step.UUID)
	if err != nil {
		return Result{}, fmt.Errorf("proofengine: increment retry: %w", err)
	}

	if retries > e.maxRetries {
		return Result{
			Outcome:    Blocked,
			ErrorCode:  ErrMaxRetriesExceeded,
			MustObey:   false,
			RetryCount: retries,
			NextAction: "Retries exhausted: update this step, attest outcome=\"failure\", or ask a human for help.",
		}, nil
	}

	challenge, err := e.BuildChallenge(ctx, step, expectedPrevHash)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Outcome:    Blocked,
		ErrorCode:  errorCode,
		MustObey:   true,
		RetryCount: retries,
		Challenge:  &challenge,
		NextAction: fmt.Sprintf("retry kairos_next with %s -- use nonce and proof_hash from THIS response's challenge", step.UUID),
	}, nil
}
