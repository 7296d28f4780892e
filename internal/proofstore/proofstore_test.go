package proofstore

import (
	"context"
	"testing"

	"github.com/kairos-dev/kairos/internal/kv"
	"github.com/kairos-dev/kairos/internal/proof"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return New(kv.NewFake(), 3600)
}

func TestNonceIssueAndConsume(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	nonce, err := s.SetNonce(ctx, "step-1")
	require.NoError(t, err)
	assert.Len(t, nonce, 32)

	got, err := s.GetNonce(ctx, "step-1")
	require.NoError(t, err)
	assert.Equal(t, nonce, got)

	consumed, err := s.ConsumeNonce(ctx, "step-1")
	require.NoError(t, err)
	assert.Equal(t, nonce, consumed)

	_, err = s.GetNonce(ctx, "step-1")
	assert.ErrorIs(t, err, ErrNoNonce)
}

func TestProofHashDefaultsToGenesis(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	hash, err := s.GetProofHash(ctx, "step-1")
	require.NoError(t, err)
	assert.Equal(t, proof.GenesisHash, hash)

	require.NoError(t, s.SetProofHash(ctx, "step-1", "deadbeef"))
	hash, err = s.GetProofHash(ctx, "step-1")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", hash)
}

func TestRetryLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	n, err := s.GetRetry(ctx, "step-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = s.IncrementRetry(ctx, "step-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.IncrementRetry(ctx, "step-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.ResetRetry(ctx, "step-1"))
	n, err = s.GetRetry(ctx, "step-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSaveAndGetResult(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	_, err := s.GetResult(ctx, "step-1")
	assert.ErrorIs(t, err, ErrNoResult)

	record := proof.Record{ResultID: "r1", Type: proof.TypeComment, Status: proof.StatusSuccess, CommentText: "done"}
	require.NoError(t, s.SaveResult(ctx, "step-1", record))

	got, err := s.GetResult(ctx, "step-1")
	require.NoError(t, err)
	assert.Equal(t, record, got)
}
