package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kairos-dev/kairos/internal/cache"
	"github.com/kairos-dev/kairos/internal/config"
	"github.com/kairos-dev/kairos/internal/memory"
	"github.com/kairos-dev/kairos/internal/proof"
	"github.com/kairos-dev/kairos/internal/proofengine"
	"github.com/kairos-dev/kairos/internal/proofstore"
)

// searchCacheCapacity bounds the in-process search response cache.
const searchCacheCapacity = 512

// Engine composes the memory store, proof store, and proof engine into the
// search/begin/next/attest/mint/update/delete operation surface.
type Engine struct {
	memory      *memory.Store
	proofEngine *proofengine.Engine
	proofStore  *proofstore.Store
	searchCache *cache.Cache[string, SearchResponse]
	cfg         *config.Config
	logger      *slog.Logger
}

// New builds an Engine over its L2/L3 collaborators.
func New(mem *memory.Store, pe *proofengine.Engine, ps *proofstore.Store, cfg *config.Config) *Engine {
	return &Engine{
		memory:      mem,
		proofEngine: pe,
		proofStore:  ps,
		searchCache: cache.New[string, SearchResponse](searchCacheCapacity, config.SearchCacheTTL),
		cfg:         cfg,
		logger:      slog.Default(),
	}
}

func (e *Engine) loadStep(ctx context.Context, id, spaceID string) (*memory.Step, error) {
	step, err := e.memory.Get(ctx, id, spaceID)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return nil, &APIError{Code: "NOT_FOUND", Status: 404, Message: "no step found for " + id}
		}
		return nil, &APIError{Code: "LOAD_FAILED", Status: 500, Message: err.Error()}
	}
	return step, nil
}

func (e *Engine) resolveSpace(space string) string {
	if space == "" {
		return e.cfg.DefaultSpaceID
	}
	return space
}

// expectedPrevHash resolves the predecessor hash a solution for step must
// carry.
func (e *Engine) expectedPrevHash(ctx context.Context, step memory.Step) (string, error) {
	if step.Chain == nil || step.Chain.StepIndex <= 1 {
		return proof.GenesisHash, nil
	}
	prev, err := e.memory.GetChainPrevious(ctx, step)
	if err != nil {
		return "", err
	}
	if prev == nil {
		return proof.GenesisHash, nil
	}
	return e.proofStore.GetProofHash(ctx, prev.UUID)
}
