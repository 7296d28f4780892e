package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kairos-dev/kairos/internal/chainbuilder"
	"github.com/kairos-dev/kairos/internal/memory"
	"github.com/kairos-dev/kairos/internal/urischeme"
)

// Mint parses a markdown document into protocol chains and persists each
// one as a new memory chain.
func (e *Engine) Mint(ctx context.Context, markdown, modelID string, forceUpdate bool, space string) (*MintResponse, error) {
	started := time.Now()
	if strings.TrimSpace(markdown) == "" {
		return nil, &APIError{Code: "INVALID_INPUT", Status: 400, Message: "markdown must not be empty"}
	}
	space = e.resolveSpace(space)

	chains := chainbuilder.Parse(markdown)
	var items []MintItem
	for _, c := range chains {
		if len(c.Steps) == 0 {
			continue
		}
		stored, err := e.memory.StoreChain(ctx, c.Steps, modelID, space, memory.StoreChainOptions{ForceUpdate: forceUpdate})
		if err != nil {
			var dup *memory.DuplicateChainError
			if errors.As(err, &dup) {
				return nil, &APIError{
					Code:    "DUPLICATE_CHAIN",
					Status:  409,
					Message: "a chain with this label already exists; call mint again with force_update to replace it",
					Items:   toMintItems(dup.Existing),
				}
			}
			return nil, &APIError{Code: "MINT_FAILED", Status: 500, Message: err.Error()}
		}
		items = append(items, toMintItems(stored)...)
	}

	return &MintResponse{
		Status:   "stored",
		Items:    items,
		Metadata: Metadata{DurationMs: time.Since(started).Milliseconds()},
	}, nil
}

func toMintItems(steps []memory.Step) []MintItem {
	items := make([]MintItem, 0, len(steps))
	for _, s := range steps {
		items = append(items, MintItem{
			URI:        urischeme.New(s.UUID),
			MemoryUUID: s.UUID,
			Label:      s.Label,
			Tags:       s.Tags,
		})
	}
	return items
}
