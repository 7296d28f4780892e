package memory

import (
	"encoding/json"

	"github.com/kairos-dev/kairos/internal/proof"
	"github.com/kairos-dev/kairos/internal/vectorstore"
)

// toPayload converts a Step into the map[string]any shape persisted on the
// vector-store point. chain_id is duplicated at the top
// level (alongside the nested chain object) so Filter.Equals can match it
// as a plain string equality, matching the narrow Filter contract in
// internal/vectorstore.
func toPayload(step Step) map[string]any {
	payload := map[string]any{
		"label":        step.Label,
		"tags":         step.Tags,
		"text":         step.Text,
		"llm_model_id": step.AuthorModelID,
		"created_at":   step.CreatedAt,
		"space_id":     step.SpaceID,
	}

	if step.Chain != nil {
		payload["chain_id"] = step.Chain.ID
		payload["chain"] = map[string]any{
			"id":         step.Chain.ID,
			"label":      step.Chain.Label,
			"step_index": step.Chain.StepIndex,
			"step_count": step.Chain.StepCount,
		}
	}

	if step.ProofDef != nil {
		if data, err := json.Marshal(step.ProofDef); err == nil {
			var m map[string]any
			if json.Unmarshal(data, &m) == nil {
				payload["proof_of_work"] = m
			}
		}
	}

	if step.Quality != nil {
		payload["quality"] = map[string]any{
			"step_quality_score": step.Quality.StepQualityScore,
			"step_quality":       step.Quality.StepQuality,
			"retrieval_count":    step.Quality.RetrievalCount,
			"success_count":      step.Quality.SuccessCount,
			"failure_count":      step.Quality.FailureCount,
			"last_rated":         step.Quality.LastRated,
			"last_rater":         step.Quality.LastRater,
			"quality_bonus":      step.Quality.QualityBonus,
			"usage_context":      step.Quality.UsageContext,
		}
	}

	return payload
}

// fromPayload reconstructs a Step from a stored point. It is deliberately
// defensive about the dynamic types behind map[string]any: the Fake store
// round-trips Go values verbatim, while a real backend may hand back
// JSON-decoded numbers as float64.
func fromPayload(p vectorstore.Point) Step {
	step := Step{UUID: p.ID}

	if v, ok := p.Payload["label"].(string); ok {
		step.Label = v
	}
	if v, ok := p.Payload["text"].(string); ok {
		step.Text = v
	}
	if v, ok := p.Payload["llm_model_id"].(string); ok {
		step.AuthorModelID = v
	}
	if v, ok := p.Payload["created_at"].(string); ok {
		step.CreatedAt = v
	}
	if v, ok := p.Payload["space_id"].(string); ok {
		step.SpaceID = v
	}

	switch tags := p.Payload["tags"].(type) {
	case []string:
		step.Tags = tags
	case []any:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				step.Tags = append(step.Tags, s)
			}
		}
	}

	if chainRaw, ok := p.Payload["chain"].(map[string]any); ok {
		chain := &ChainRef{}
		if v, ok := chainRaw["id"].(string); ok {
			chain.ID = v
		}
		if v, ok := chainRaw["label"].(string); ok {
			chain.Label = v
		}
		chain.StepIndex = toInt(chainRaw["step_index"])
		chain.StepCount = toInt(chainRaw["step_count"])
		step.Chain = chain
	}

	if pow, ok := p.Payload["proof_of_work"].(map[string]any); ok {
		if data, err := json.Marshal(pow); err == nil {
			var def proof.Definition
			if json.Unmarshal(data, &def) == nil {
				step.ProofDef = &def
			}
		}
	}

	if q, ok := p.Payload["quality"].(map[string]any); ok {
		quality := &Quality{
			StepQualityScore: toFloat(q["step_quality_score"]),
			RetrievalCount:   toInt(q["retrieval_count"]),
			SuccessCount:     toInt(q["success_count"]),
			FailureCount:     toInt(q["failure_count"]),
			QualityBonus:     toFloat(q["quality_bonus"]),
		}
		if v, ok := q["step_quality"].(string); ok {
			quality.StepQuality = v
		}
		if v, ok := q["last_rated"].(string); ok {
			quality.LastRated = v
		}
		if v, ok := q["last_rater"].(string); ok {
			quality.LastRater = v
		}
		if v, ok := q["usage_context"].(string); ok {
			quality.UsageContext = v
		}
		step.Quality = quality
	}

	return step
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
