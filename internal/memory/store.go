package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kairos-dev/kairos/internal/cache"
	"github.com/kairos-dev/kairos/internal/embedding"
	"github.com/kairos-dev/kairos/internal/kv"
	"github.com/kairos-dev/kairos/internal/ranker"
	"github.com/kairos-dev/kairos/internal/vectorstore"
)

// cacheCapacity bounds the in-process step cache.
const cacheCapacity = 2048

// candidateCap is the hard ceiling on vector-search candidates regardless
// of the requested limit.
const candidateCap = 200

// scrollCap bounds the keyword-fallback scroll.
const scrollCap = 500

// Store implements the memory store over a vector-store
// collaborator, an embedder, and a KV collaborator used only for
// cross-instance cache invalidation.
type Store struct {
	vs       vectorstore.Store
	embedder embedding.Embedder
	kv       kv.Store
	cache    *cache.Cache[string, Step]
	logger   *slog.Logger
}

// New builds a Store over its L1 collaborators.
func New(vs vectorstore.Store, embedder embedding.Embedder, kvStore kv.Store) *Store {
	return &Store{
		vs:       vs,
		embedder: embedder,
		kv:       kvStore,
		cache:    cache.New[string, Step](cacheCapacity, 0),
		logger:   slog.Default(),
	}
}

// Cache exposes the step cache so callers can wire a cache.Subscriber
// listening for peer invalidation messages.
func (s *Store) Cache() *cache.Cache[string, Step] {
	return s.cache
}

func (s *Store) vectorName() string {
	return fmt.Sprintf("vs%d", s.embedder.Dim())
}

// Get loads a step by uuid, scoped to spaceID.
func (s *Store) Get(ctx context.Context, id, spaceID string) (*Step, error) {
	if step, ok := s.cache.Get(id); ok {
		if step.SpaceID != spaceID {
			return nil, ErrNotFound
		}
		cp := step
		return &cp, nil
	}

	point, err := s.vs.Retrieve(ctx, id, vectorstore.Filter{SpaceID: spaceID})
	if err != nil {
		if err == vectorstore.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	step := fromPayload(*point)
	s.cache.Set(id, step)
	return &step, nil
}

// ScoredStep pairs a Step with its blended search score.
type ScoredStep struct {
	Step  Step
	Score float64
}

// Search does a vector-first candidate gather with quality-blended scoring,
// falling back to keyword matching when the vector pass starves the
// requested limit, with optional chain-head collapsing.
func (s *Store) Search(ctx context.Context, query string, limit int, spaceID string, collapseToHeads bool) ([]ScoredStep, error) {
	if limit <= 0 {
		limit = 10
	}
	candidateLimit := limit * 3
	if candidateLimit > candidateCap {
		candidateLimit = candidateCap
	}

	scored := s.vectorCandidates(ctx, query, candidateLimit, spaceID)
	if len(scored) < limit {
		scored = s.keywordFallback(ctx, query, spaceID, scored)
	}

	cands := make([]ranker.Candidate, len(scored))
	for i, sc := range scored {
		chainID, stepIndex := "", 0
		if sc.Step.Chain != nil {
			chainID, stepIndex = sc.Step.Chain.ID, sc.Step.Chain.StepIndex
		}
		cands[i] = ranker.Candidate{UUID: sc.Step.UUID, ChainID: chainID, StepIndex: stepIndex, Score: sc.Score}
	}
	ranker.Sort(cands)
	if collapseToHeads {
		cands = ranker.CollapseToHeads(cands)
	}
	if len(cands) > limit {
		cands = cands[:limit]
	}

	byUUID := make(map[string]ScoredStep, len(scored))
	for _, sc := range scored {
		byUUID[sc.Step.UUID] = sc
	}
	out := make([]ScoredStep, 0, len(cands))
	for _, c := range cands {
		if sc, ok := byUUID[c.UUID]; ok {
			sc.Score = c.Score
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *Store) vectorCandidates(ctx context.Context, query string, candidateLimit int, spaceID string) []ScoredStep {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("memory: embed query failed, falling back to keyword search only", "error", err)
		return nil
	}

	points, err := s.vs.Search(ctx, s.vectorName(), vec, candidateLimit, vectorstore.Filter{SpaceID: spaceID})
	if err != nil {
		s.logger.Warn("memory: vector search failed", "error", err)
		return nil
	}

	scored := make([]ScoredStep, 0, len(points))
	for _, p := range points {
		step := fromPayload(p.Point)
		quality := 0.0
		if step.Quality != nil {
			quality = step.Quality.StepQualityScore
		}
		scored = append(scored, ScoredStep{Step: step, Score: ranker.Blend(float64(p.Score), quality)})
	}
	return scored
}

func (s *Store) keywordFallback(ctx context.Context, query, spaceID string, scored []ScoredStep) []ScoredStep {
	points, err := s.vs.Scroll(ctx, vectorstore.Filter{SpaceID: spaceID}, scrollCap)
	if err != nil {
		s.logger.Warn("memory: keyword fallback scroll failed", "error", err)
		return scored
	}

	seen := make(map[string]bool, len(scored))
	for _, sc := range scored {
		seen[sc.Step.UUID] = true
	}

	needle := strings.ToLower(query)
	for _, p := range points {
		step := fromPayload(p)
		if seen[step.UUID] {
			continue
		}
		if strings.Contains(strings.ToLower(step.Label), needle) || strings.Contains(strings.ToLower(step.Text), needle) {
			scored = append(scored, ScoredStep{Step: step, Score: 0.5})
			seen[step.UUID] = true
		}
	}
	return scored
}

// StoreChainOptions configures StoreChain.
type StoreChainOptions struct {
	ForceUpdate bool
}

// StoreChain mints a chain from already-parsed steps. steps must share a single Chain.Label; StoreChain assigns
// identities, embeds bodies in one batch, and upserts every step.
func (s *Store) StoreChain(ctx context.Context, steps []Step, authorID, spaceID string, opts StoreChainOptions) ([]Step, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyChain
	}

	label := steps[0].Label
	if steps[0].Chain != nil && steps[0].Chain.Label != "" {
		label = steps[0].Chain.Label
	}
	chainID := ChainID(label)

	existing, err := s.scrollChain(ctx, chainID, spaceID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		if !opts.ForceUpdate {
			return nil, &DuplicateChainError{Existing: existing}
		}
		if err := s.deleteSteps(ctx, existing); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	texts := make([]string, len(steps))
	for i := range steps {
		if steps[i].UUID == "" {
			steps[i].UUID = uuid.NewString()
		}
		if steps[i].Chain == nil {
			steps[i].Chain = &ChainRef{}
		}
		steps[i].Chain.ID = chainID
		steps[i].Chain.Label = label
		steps[i].Chain.StepCount = len(steps)
		steps[i].CreatedAt = now
		steps[i].AuthorModelID = authorID
		steps[i].SpaceID = spaceID
		texts[i] = steps[i].Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.logger.Warn("memory: embedding batch failed, upserting zero vectors", "error", err, "chain_id", chainID)
		vectors = make([][]float32, len(steps))
		for i := range vectors {
			vectors[i] = make([]float32, s.embedder.Dim())
		}
	}

	points := make([]vectorstore.Point, len(steps))
	for i, step := range steps {
		points[i] = vectorstore.Point{
			ID:         step.UUID,
			VectorName: s.vectorName(),
			Vector:     vectors[i],
			Payload:    toPayload(step),
		}
	}
	if err := s.vs.Upsert(ctx, points); err != nil {
		return nil, err
	}

	for _, step := range steps {
		s.invalidate(ctx, step.UUID)
	}
	return steps, nil
}

// UpdateRequest carries either a raw text replacement (subject to
// KAIROS:BODY-START/END extraction) or whole-field replacements.
type UpdateRequest struct {
	Text    *string
	Label   *string
	Tags    []string
	HasTags bool
}

// Update applies req to the step identified by id.
func (s *Store) Update(ctx context.Context, id, spaceID string, req UpdateRequest) error {
	step, err := s.Get(ctx, id, spaceID)
	if err != nil {
		return err
	}

	if req.Text != nil {
		step.Text = ExtractBody(*req.Text)
	}
	if req.Label != nil {
		step.Label = *req.Label
	}
	if req.HasTags {
		step.Tags = req.Tags
	}

	vec, err := s.embedder.Embed(ctx, step.Text)
	if err != nil {
		s.logger.Warn("memory: re-embed on update failed, keeping stale vector", "error", err, "uuid", id)
		vec = nil
	}

	point := vectorstore.Point{ID: step.UUID, VectorName: s.vectorName(), Payload: toPayload(*step)}
	if vec != nil {
		point.Vector = vec
	} else if existing, rerr := s.vs.Retrieve(ctx, id, vectorstore.Filter{SpaceID: spaceID}); rerr == nil {
		point.Vector = existing.Vector
	}

	if err := s.vs.Upsert(ctx, []vectorstore.Point{point}); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// UpdateQuality persists step's Quality block without touching text or
// vector.
func (s *Store) UpdateQuality(ctx context.Context, id, spaceID string, quality Quality) error {
	step, err := s.Get(ctx, id, spaceID)
	if err != nil {
		return err
	}
	step.Quality = &quality

	existing, err := s.vs.Retrieve(ctx, id, vectorstore.Filter{SpaceID: spaceID})
	if err != nil {
		return err
	}
	point := vectorstore.Point{ID: step.UUID, VectorName: s.vectorName(), Vector: existing.Vector, Payload: toPayload(*step)}
	if err := s.vs.Upsert(ctx, []vectorstore.Point{point}); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// Delete removes steps by id.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if err := s.vs.Delete(ctx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		s.invalidate(ctx, id)
	}
	return nil
}

// GetChainNext resolves the step immediately after step in its chain, or
// nil when step is the last step.
func (s *Store) GetChainNext(ctx context.Context, step Step) (*Step, error) {
	return s.chainNeighbor(ctx, step, step.Chain.StepIndex+1)
}

// GetChainPrevious resolves the step immediately before step in its chain,
// or nil when step is the first step.
func (s *Store) GetChainPrevious(ctx context.Context, step Step) (*Step, error) {
	if step.Chain.StepIndex <= 1 {
		return nil, nil
	}
	return s.chainNeighbor(ctx, step, step.Chain.StepIndex-1)
}

// GetChainFirst resolves the first step of step's chain.
func (s *Store) GetChainFirst(ctx context.Context, step Step) (*Step, error) {
	return s.chainNeighbor(ctx, step, 1)
}

func (s *Store) chainNeighbor(ctx context.Context, step Step, index int) (*Step, error) {
	if step.Chain == nil {
		return nil, nil
	}
	siblings, err := s.scrollChain(ctx, step.Chain.ID, step.SpaceID)
	if err != nil {
		return nil, err
	}
	for i := range siblings {
		if siblings[i].Chain != nil && siblings[i].Chain.StepIndex == index {
			return &siblings[i], nil
		}
	}
	return nil, nil
}

func (s *Store) scrollChain(ctx context.Context, chainID, spaceID string) ([]Step, error) {
	points, err := s.vs.Scroll(ctx, vectorstore.Filter{SpaceID: spaceID, Equals: map[string]string{"chain_id": chainID}}, 0)
	if err != nil {
		return nil, err
	}
	steps := make([]Step, len(points))
	for i, p := range points {
		steps[i] = fromPayload(p)
	}
	return steps, nil
}

func (s *Store) deleteSteps(ctx context.Context, steps []Step) error {
	ids := make([]string, len(steps))
	for i, step := range steps {
		ids[i] = step.UUID
	}
	return s.Delete(ctx, ids)
}

func (s *Store) invalidate(ctx context.Context, id string) {
	s.cache.Invalidate(id)
	if s.kv == nil {
		return
	}
	if err := cache.Publish(ctx, s.kv, id); err != nil {
		s.logger.Warn("memory: failed to publish cache invalidation", "error", err, "uuid", id)
	}
}
