package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kairos-dev/kairos/internal/urischeme"
)

// Search resolves a natural-language query to candidate steps. Results are cached per (space, normalized query, collapse mode)
// for SearchCacheTTL.
func (e *Engine) Search(ctx context.Context, query, space string) (*SearchResponse, error) {
	started := time.Now()
	if strings.TrimSpace(query) == "" {
		return nil, &APIError{Code: "INVALID_INPUT", Status: 400, Message: "query must not be empty"}
	}
	space = e.resolveSpace(space)
	normalized := strings.ToLower(strings.TrimSpace(query))

	cacheKey := fmt.Sprintf("%s|%s|%v", space, normalized, e.cfg.EnableGroupCollapse)
	if cached, ok := e.searchCache.Get(cacheKey); ok {
		cached.Cached = true
		return &cached, nil
	}

	results, err := e.memory.Search(ctx, normalized, 10, space, e.cfg.EnableGroupCollapse)
	if err != nil {
		return nil, &APIError{Code: "SEARCH_FAILED", Status: 500, Message: err.Error()}
	}

	choices := make([]Choice, 0, len(results))
	for _, r := range results {
		if r.Score < e.cfg.ScoreThreshold {
			continue
		}
		if len(choices) == 10 {
			break
		}
		uri := urischeme.New(r.Step.UUID)
		score := r.Score
		chainLabel := ""
		if r.Step.Chain != nil {
			chainLabel = r.Step.Chain.Label
		}
		choices = append(choices, Choice{
			URI:        uri,
			Label:      r.Step.Label,
			ChainLabel: chainLabel,
			Score:      &score,
			Role:       "match",
			Tags:       r.Step.Tags,
			NextAction: fmt.Sprintf("call kairos_begin with %s to execute this protocol", uri),
		})
	}

	if len(choices) != 1 {
		choices = append(choices,
			Choice{URI: urischeme.RefineSearchURI, Role: "refine", NextAction: "call kairos_search again with a more specific query"},
			Choice{URI: urischeme.CreateNewURI, Role: "create", NextAction: "call kairos_mint to record a new protocol for this task"},
		)
	}

	resp := SearchResponse{
		MustObey:   true,
		Message:    "Select one of the choices below before proceeding.",
		NextAction: "call kairos_begin with the chosen uri, or kairos_mint if none fit",
		Choices:    choices,
		Cached:     false,
		Metadata:   Metadata{DurationMs: time.Since(started).Milliseconds()},
	}
	e.searchCache.Set(cacheKey, resp)
	return &resp, nil
}
