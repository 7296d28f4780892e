package engine

import (
	"context"
	"time"

	"github.com/kairos-dev/kairos/internal/memory"
	"github.com/kairos-dev/kairos/internal/urischeme"
)

// Update applies per-step label/tag/text edits in a single batch call.
func (e *Engine) Update(ctx context.Context, items []UpdateItem, space string) (*UpdateResponse, error) {
	started := time.Now()
	space = e.resolveSpace(space)

	results := make([]OpResult, 0, len(items))
	var updated, failed int
	for _, item := range items {
		id, err := urischeme.Parse(item.URI)
		if err != nil {
			results = append(results, OpResult{URI: item.URI, Status: "failed", Message: err.Error()})
			failed++
			continue
		}

		req := memory.UpdateRequest{Text: item.Text, Label: item.Label, HasTags: item.HasTags, Tags: item.Tags}
		if err := e.memory.Update(ctx, id, space, req); err != nil {
			results = append(results, OpResult{URI: item.URI, Status: "failed", Message: err.Error()})
			failed++
			continue
		}
		results = append(results, OpResult{URI: item.URI, Status: "updated"})
		updated++
	}

	return &UpdateResponse{
		Results:      results,
		TotalUpdated: updated,
		TotalFailed:  failed,
		Metadata:     Metadata{DurationMs: time.Since(started).Milliseconds()},
	}, nil
}

// Delete removes steps by URI in a single batch call.
func (e *Engine) Delete(ctx context.Context, uris []string, space string) (*DeleteResponse, error) {
	started := time.Now()

	var validIDs []string
	uriByID := make(map[string]string, len(uris))
	results := make([]OpResult, 0, len(uris))
	var failed, deleted int

	for _, uri := range uris {
		id, err := urischeme.Parse(uri)
		if err != nil {
			results = append(results, OpResult{URI: uri, Status: "failed", Message: err.Error()})
			failed++
			continue
		}
		validIDs = append(validIDs, id)
		uriByID[id] = uri
	}

	if len(validIDs) > 0 {
		if err := e.memory.Delete(ctx, validIDs); err != nil {
			for _, id := range validIDs {
				results = append(results, OpResult{URI: uriByID[id], Status: "failed", Message: err.Error()})
				failed++
			}
		} else {
			for _, id := range validIDs {
				results = append(results, OpResult{URI: uriByID[id], Status: "deleted"})
				deleted++
			}
		}
	}

	return &DeleteResponse{
		Results:      results,
		TotalDeleted: deleted,
		TotalFailed:  failed,
		Metadata:     Metadata{DurationMs: time.Since(started).Milliseconds()},
	}, nil
}
