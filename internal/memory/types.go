// Package memory implements the memory store: chains and
// steps persisted as vector-store points, searched with the ranker, and
// cached in-process with pub/sub invalidation.
package memory

import (
	"strings"

	"github.com/google/uuid"
	"github.com/kairos-dev/kairos/internal/proof"
)

// ChainNamespace is the fixed UUID namespace chain identities are derived
// from. Arbitrary but fixed for the lifetime of the
// module; changing it would re-mint every existing chain under a new id.
var ChainNamespace = uuid.MustParse("3b241101-e2bb-4255-8caf-4136c566a962")

// ChainRef is a step's position within its chain.
type ChainRef struct {
	ID        string
	Label     string
	StepIndex int
	StepCount int
}

// Quality holds the attest-derived counters and score for a step.
type Quality struct {
	StepQualityScore float64
	StepQuality      string
	RetrievalCount   int
	SuccessCount     int
	FailureCount     int
	LastRated        string
	LastRater        string
	QualityBonus     float64
	UsageContext     string
}

// Step is one executable unit of a chain.
type Step struct {
	UUID          string
	Label         string
	Tags          []string
	Text          string
	CreatedAt     string
	AuthorModelID string
	SpaceID       string

	Chain    *ChainRef
	ProofDef *proof.Definition
	Quality  *Quality
}

// NormalizeLabel lowercases and whitespace-collapses label so that chain
// identity depends only on meaningful content.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

// ChainID derives the deterministic chain identity for a normalized label.
func ChainID(label string) string {
	return uuid.NewSHA1(ChainNamespace, []byte(NormalizeLabel(label))).String()
}
