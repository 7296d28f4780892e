package proofengine

import (
	"context"
	"testing"

	"github.com/kairos-dev/kairos/internal/embedding"
	"github.com/kairos-dev/kairos/internal/kv"
	"github.com/kairos-dev/kairos/internal/memory"
	"github.com/kairos-dev/kairos/internal/proof"
	"github.com/kairos-dev/kairos/internal/proofstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() (*Engine, *proofstore.Store) {
	ps := proofstore.New(kv.NewFake(), 3600)
	return New(ps, embedding.NewFake(32), 0.25, 3), ps
}

func commentStep() memory.Step {
	return memory.Step{
		UUID: "step-1",
		Text: "Run make build and confirm the release binary was produced without errors in the output log",
		ProofDef: &proof.Definition{
			Type:     proof.TypeComment,
			Required: true,
			Comment:  &proof.CommentDef{MinLength: 10},
		},
	}
}

func TestBuildChallengeIssuesNonce(t *testing.T) {
	ctx := context.Background()
	engine, ps := newTestEngine()
	step := commentStep()

	ch, err := engine.BuildChallenge(ctx, step, proof.GenesisHash)
	require.NoError(t, err)
	assert.Equal(t, proof.TypeComment, ch.Type)
	assert.Equal(t, proof.GenesisHash, ch.ProofHash)
	assert.NotEmpty(t, ch.Nonce)

	stored, err := ps.GetNonce(ctx, step.UUID)
	require.NoError(t, err)
	assert.Equal(t, ch.Nonce, stored)
}

func TestValidateAcceptsRelevantComment(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	step := commentStep()

	ch, err := engine.BuildChallenge(ctx, step, proof.GenesisHash)
	require.NoError(t, err)

	solution := proof.Solution{
		Type:      proof.TypeComment,
		Nonce:     ch.Nonce,
		ProofHash: proof.GenesisHash,
		Comment:   &proof.CommentSolution{Text: "I ran make build and the release binary was produced without errors."},
	}

	result, err := engine.Validate(ctx, step, solution, proof.GenesisHash)
	require.NoError(t, err)
	assert.Equal(t, Accepted, result.Outcome)
	assert.NotEmpty(t, result.ProofHash)
}

func TestValidateRejectsNonceMismatch(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	step := commentStep()

	_, err := engine.BuildChallenge(ctx, step, proof.GenesisHash)
	require.NoError(t, err)

	solution := proof.Solution{
		Type:      proof.TypeComment,
		Nonce:     "wrong-nonce",
		ProofHash: proof.GenesisHash,
		Comment:   &proof.CommentSolution{Text: "some decently long comment text here"},
	}

	result, err := engine.Validate(ctx, step, solution, proof.GenesisHash)
	require.NoError(t, err)
	assert.Equal(t, Blocked, result.Outcome)
	assert.Equal(t, ErrNonceMismatch, result.ErrorCode)
	assert.Equal(t, int64(1), result.RetryCount)
	require.NotNil(t, result.Challenge)
}

func TestValidateRejectsShortComment(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	step := commentStep()

	ch, err := engine.BuildChallenge(ctx, step, proof.GenesisHash)
	require.NoError(t, err)

	solution := proof.Solution{
		Type:      proof.TypeComment,
		Nonce:     ch.Nonce,
		ProofHash: proof.GenesisHash,
		Comment:   &proof.CommentSolution{Text: "no"},
	}

	result, err := engine.Validate(ctx, step, solution, proof.GenesisHash)
	require.NoError(t, err)
	assert.Equal(t, Blocked, result.Outcome)
	assert.Equal(t, ErrCommentTooShort, result.ErrorCode)
}

func TestValidateEscalatesToMaxRetries(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	step := commentStep()

	for i := 0; i < 3; i++ {
		ch, err := engine.BuildChallenge(ctx, step, proof.GenesisHash)
		require.NoError(t, err)
		solution := proof.Solution{Type: proof.TypeComment, Nonce: ch.Nonce, ProofHash: proof.GenesisHash, Comment: &proof.CommentSolution{Text: "no"}}
		result, err := engine.Validate(ctx, step, solution, proof.GenesisHash)
		require.NoError(t, err)
		assert.True(t, result.MustObey)
		assert.Equal(t, int64(i+1), result.RetryCount)
	}

	ch, err := engine.BuildChallenge(ctx, step, proof.GenesisHash)
	require.NoError(t, err)
	solution := proof.Solution{Type: proof.TypeComment, Nonce: ch.Nonce, ProofHash: proof.GenesisHash, Comment: &proof.CommentSolution{Text: "no"}}
	result, err := engine.Validate(ctx, step, solution, proof.GenesisHash)
	require.NoError(t, err)
	assert.False(t, result.MustObey)
	assert.Equal(t, ErrMaxRetriesExceeded, result.ErrorCode)
}

func TestValidateRejectsNonceReplay(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	step := commentStep()

	ch, err := engine.BuildChallenge(ctx, step, proof.GenesisHash)
	require.NoError(t, err)
	solution := proof.Solution{
		Type:      proof.TypeComment,
		Nonce:     ch.Nonce,
		ProofHash: proof.GenesisHash,
		Comment:   &proof.CommentSolution{Text: "I ran make build and the release binary was produced without errors."},
	}

	first, err := engine.Validate(ctx, step, solution, proof.GenesisHash)
	require.NoError(t, err)
	assert.Equal(t, Accepted, first.Outcome)

	second, err := engine.Validate(ctx, step, solution, proof.GenesisHash)
	require.NoError(t, err)
	assert.Equal(t, Blocked, second.Outcome)
	assert.Equal(t, ErrNonceMismatch, second.ErrorCode)
}
