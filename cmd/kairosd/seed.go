package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kairos-dev/kairos/internal/memory"
	"github.com/kairos-dev/kairos/internal/urischeme"
)

const systemAuthorID = "system"

// seedSystemProtocols writes the "system" memory points the create/refine
// sentinel URIs resolve to, if they aren't already present. Run once per
// boot; idempotent across restarts since it checks each sentinel's uuid
// before writing. snapshotDir, if non-empty, may override either point's
// built-in text with a file named after its sentinel (create.md,
// refine.md); a missing override file falls back to the embedded default.
func seedSystemProtocols(ctx context.Context, mem *memory.Store, spaceID, snapshotDir string) error {
	seeds := []struct {
		uuid         string
		label        string
		text         string
		overrideFile string
	}{
		{
			uuid:         urischeme.CreateNewUUID,
			label:        "Create a new protocol",
			text:         createProtocolText,
			overrideFile: "create.md",
		},
		{
			uuid:         urischeme.RefineSearchUUID,
			label:        "Refine a search",
			text:         refineProtocolText,
			overrideFile: "refine.md",
		},
	}

	for _, seed := range seeds {
		_, err := mem.Get(ctx, seed.uuid, spaceID)
		if err == nil {
			continue
		}
		if !errors.Is(err, memory.ErrNotFound) {
			return fmt.Errorf("check system point %s: %w", seed.label, err)
		}

		text := seed.text
		if snapshotDir != "" {
			overridden, err := loadSnapshotOverride(snapshotDir, seed.overrideFile)
			if err != nil {
				return fmt.Errorf("load snapshot override for %s: %w", seed.label, err)
			}
			if overridden != "" {
				text = overridden
			}
		}

		step := memory.Step{
			UUID:          seed.uuid,
			Label:         seed.label,
			Text:          text,
			SpaceID:       spaceID,
			AuthorModelID: systemAuthorID,
		}
		if _, err := mem.StoreChain(ctx, []memory.Step{step}, systemAuthorID, spaceID, memory.StoreChainOptions{}); err != nil {
			return fmt.Errorf("seed system point %s: %w", seed.label, err)
		}
	}
	return nil
}

// loadSnapshotOverride reads <snapshotDir>/<name>, returning "" (not an
// error) if the override file doesn't exist.
func loadSnapshotOverride(snapshotDir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(snapshotDir, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

const createProtocolText = `# Create a new protocol

No existing protocol matched your search closely enough. Call kairos_mint
with a markdown document describing the steps of the new protocol, one
step per heading, including any shell/MCP/user-input/comment proof
requirements each step should carry.`

const refineProtocolText = `# Refine a search

The match on your last search wasn't strong enough to commit to
automatically. Call kairos_search again with a narrower or more specific
query: name the tool, file type, or outcome you're after.`
