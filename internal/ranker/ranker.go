// Package ranker blends raw similarity scores with a bounded quality boost
// and collapses search candidates down to one representative per chain.
// It has no dependency on the memory store so both the memory store's
// search and the execution engine's search post-processing can share it
// without an import cycle.
package ranker

import "sort"

// Candidate is the minimal shape ranker needs from a search hit: enough to
// blend, sort, and collapse without knowing anything about steps or chains.
type Candidate struct {
	UUID      string
	ChainID   string
	StepIndex int
	Score     float64
}

// Blend applies a bounded quality boost to a raw similarity score:
// score = raw_score * (1 + 0.1 * clamp(quality, 0, 1)).
func Blend(rawScore, quality float64) float64 {
	if quality < 0 {
		quality = 0
	}
	if quality > 1 {
		quality = 1
	}
	return rawScore * (1 + 0.1*quality)
}

// Sort orders candidates by descending score with a stable ascending-uuid
// tie-break.
func Sort(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].UUID < cands[j].UUID
	})
}

// CollapseToHeads folds candidates sharing a ChainID down to one
// representative, preferring StepIndex == 1 and otherwise the higher score.
// Candidates with an empty ChainID are kept as-is. Input order is
// preserved for the surviving representatives.
func CollapseToHeads(cands []Candidate) []Candidate {
	best := make(map[string]Candidate, len(cands))
	order := make([]string, 0, len(cands))

	keyOf := func(c Candidate) string {
		if c.ChainID == "" {
			return "uuid:" + c.UUID
		}
		return "chain:" + c.ChainID
	}

	for _, c := range cands {
		k := keyOf(c)
		cur, ok := best[k]
		if !ok {
			best[k] = c
			order = append(order, k)
			continue
		}
		if isBetterHead(c, cur) {
			best[k] = c
		}
	}

	out := make([]Candidate, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

func isBetterHead(a, b Candidate) bool {
	aHead, bHead := a.StepIndex == 1, b.StepIndex == 1
	if aHead != bHead {
		return aHead
	}
	return a.Score > b.Score
}
