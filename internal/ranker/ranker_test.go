package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlendClampsQuality(t *testing.T) {
	assert.InDelta(t, 1.1, Blend(1.0, 5.0), 1e-9)
	assert.InDelta(t, 1.0, Blend(1.0, -1.0), 1e-9)
	assert.InDelta(t, 0.825, Blend(0.75, 1.0), 1e-9)
}

func TestSortStableTieBreak(t *testing.T) {
	cands := []Candidate{
		{UUID: "b", Score: 0.5},
		{UUID: "a", Score: 0.5},
		{UUID: "c", Score: 0.9},
	}
	Sort(cands)
	assert.Equal(t, []string{"c", "a", "b"}, []string{cands[0].UUID, cands[1].UUID, cands[2].UUID})
}

func TestCollapseToHeadsPrefersStepOne(t *testing.T) {
	cands := []Candidate{
		{UUID: "s3", ChainID: "chain-1", StepIndex: 3, Score: 0.9},
		{UUID: "s1", ChainID: "chain-1", StepIndex: 1, Score: 0.4},
		{UUID: "standalone", Score: 0.8},
	}
	out := CollapseToHeads(cands)

	byUUID := map[string]Candidate{}
	for _, c := range out {
		byUUID[c.UUID] = c
	}
	assert.Len(t, out, 2)
	_, keptHead := byUUID["s1"]
	assert.True(t, keptHead)
	_, keptTail := byUUID["s3"]
	assert.False(t, keptTail)
}

func TestCollapseToHeadsFallsBackToScore(t *testing.T) {
	cands := []Candidate{
		{UUID: "s2a", ChainID: "chain-2", StepIndex: 2, Score: 0.3},
		{UUID: "s2b", ChainID: "chain-2", StepIndex: 3, Score: 0.7},
	}
	out := CollapseToHeads(cands)
	assert.Len(t, out, 1)
	assert.Equal(t, "s2b", out[0].UUID)
}
