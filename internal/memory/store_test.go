package memory

import (
	"context"
	"testing"

	"github.com/kairos-dev/kairos/internal/embedding"
	"github.com/kairos-dev/kairos/internal/kv"
	"github.com/kairos-dev/kairos/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return New(vectorstore.NewFake(), embedding.NewFake(32), kv.NewFake())
}

func twoStepChain(label string) []Step {
	return []Step{
		{Label: "Build", Text: "run make build and confirm the binary exists", Chain: &ChainRef{Label: label, StepIndex: 1}},
		{Label: "Test", Text: "run make test and confirm all tests pass", Chain: &ChainRef{Label: label, StepIndex: 2}},
	}
}

func TestStoreChainThenGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	steps, err := s.StoreChain(ctx, twoStepChain("Build and Test"), "model-1", "public", StoreChainOptions{})
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].Chain.StepIndex)
	assert.Equal(t, 2, steps[0].Chain.StepCount)
	assert.Equal(t, steps[0].Chain.ID, steps[1].Chain.ID)

	got, err := s.Get(ctx, steps[0].UUID, "public")
	require.NoError(t, err)
	assert.Equal(t, "Build", got.Label)
}

func TestStoreChainDuplicateWithoutForceUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	_, err := s.StoreChain(ctx, twoStepChain("Build and Test"), "model-1", "public", StoreChainOptions{})
	require.NoError(t, err)

	_, err = s.StoreChain(ctx, twoStepChain("build and test"), "model-1", "public", StoreChainOptions{})
	var dup *DuplicateChainError
	require.ErrorAs(t, err, &dup)
	assert.Len(t, dup.Existing, 2)
}

func TestStoreChainForceUpdateReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	first, err := s.StoreChain(ctx, twoStepChain("Build and Test"), "model-1", "public", StoreChainOptions{})
	require.NoError(t, err)

	second, err := s.StoreChain(ctx, twoStepChain("Build and Test"), "model-1", "public", StoreChainOptions{ForceUpdate: true})
	require.NoError(t, err)

	_, err = s.Get(ctx, first[0].UUID, "public")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.Get(ctx, second[0].UUID, "public")
	require.NoError(t, err)
	assert.Equal(t, second[0].Chain.ID, got.Chain.ID)
}

func TestGetRespectsSpaceIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	steps, err := s.StoreChain(ctx, twoStepChain("Build and Test"), "model-1", "tenant-a", StoreChainOptions{})
	require.NoError(t, err)

	_, err = s.Get(ctx, steps[0].UUID, "tenant-b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchFindsMintedChain(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	_, err := s.StoreChain(ctx, twoStepChain("Build and Test"), "model-1", "public", StoreChainOptions{})
	require.NoError(t, err)

	results, err := s.Search(ctx, "run make build", 5, "public", true)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 1, results[0].Step.Chain.StepIndex)
}

func TestUpdateExtractsBodyMarkers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	steps, err := s.StoreChain(ctx, twoStepChain("Build and Test"), "model-1", "public", StoreChainOptions{})
	require.NoError(t, err)

	text := "ignored preamble\nKAIROS:BODY-START\nrun make lint instead\nKAIROS:BODY-END\nignored trailer"
	require.NoError(t, s.Update(ctx, steps[0].UUID, "public", UpdateRequest{Text: &text}))

	got, err := s.Get(ctx, steps[0].UUID, "public")
	require.NoError(t, err)
	assert.Equal(t, "run make lint instead", got.Text)
}

func TestChainNeighbors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	steps, err := s.StoreChain(ctx, twoStepChain("Build and Test"), "model-1", "public", StoreChainOptions{})
	require.NoError(t, err)

	next, err := s.GetChainNext(ctx, steps[0])
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, steps[1].UUID, next.UUID)

	prev, err := s.GetChainPrevious(ctx, steps[1])
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, steps[0].UUID, prev.UUID)

	last, err := s.GetChainNext(ctx, steps[1])
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestDeleteRemovesStep(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	steps, err := s.StoreChain(ctx, twoStepChain("Build and Test"), "model-1", "public", StoreChainOptions{})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, []string{steps[0].UUID}))
	_, err = s.Get(ctx, steps[0].UUID, "public")
	assert.ErrorIs(t, err, ErrNotFound)
}
