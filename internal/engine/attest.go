package engine

import (
	"context"
	"time"

	"github.com/kairos-dev/kairos/internal/memory"
	"github.com/kairos-dev/kairos/internal/quality"
	"github.com/kairos-dev/kairos/internal/urischeme"
)

// Attest records a success/failure outcome against a step, updating its
// opaque quality counters and score.
func (e *Engine) Attest(ctx context.Context, uri, outcome, message string, qualityBonus *float64, modelID, space string) (*AttestResponse, error) {
	started := time.Now()
	id, err := urischeme.Parse(uri)
	if err != nil {
		return nil, &APIError{Code: "INVALID_INPUT", Status: 400, Message: err.Error()}
	}
	var qOutcome quality.Outcome
	switch outcome {
	case "success":
		qOutcome = quality.OutcomeSuccess
	case "failure":
		qOutcome = quality.OutcomeFailure
	default:
		return nil, &APIError{Code: "INVALID_INPUT", Status: 400, Message: "outcome must be success or failure"}
	}
	space = e.resolveSpace(space)

	step, err := e.loadStep(ctx, id, space)
	if err != nil {
		return &AttestResponse{
			Results:     []AttestResult{{URI: uri, Outcome: outcome, Message: err.Error()}},
			TotalFailed: 1,
			Metadata:    Metadata{DurationMs: time.Since(started).Milliseconds()},
		}, nil
	}

	counters := quality.Counters{}
	if step.Quality != nil {
		counters = quality.Counters{
			RetrievalCount: step.Quality.RetrievalCount,
			SuccessCount:   step.Quality.SuccessCount,
			FailureCount:   step.Quality.FailureCount,
		}
	}

	newCounters, bonus, score, tag := quality.Attest(counters, qOutcome, qualityBonus)
	now := time.Now().UTC().Format(time.RFC3339)

	err = e.memory.UpdateQuality(ctx, step.UUID, space, memory.Quality{
		StepQualityScore: score,
		StepQuality:      tag,
		RetrievalCount:   newCounters.RetrievalCount,
		SuccessCount:     newCounters.SuccessCount,
		FailureCount:     newCounters.FailureCount,
		LastRated:        now,
		LastRater:        modelID,
		QualityBonus:     bonus,
		UsageContext:     message,
	})
	if err != nil {
		return nil, &APIError{Code: "STORE_FAILED", Status: 500, Message: err.Error()}
	}

	return &AttestResponse{
		Results: []AttestResult{{
			URI:          uri,
			Outcome:      outcome,
			QualityBonus: bonus,
			Message:      message,
			RatedAt:      now,
		}},
		TotalRated: 1,
		Metadata:   Metadata{DurationMs: time.Since(started).Milliseconds()},
	}, nil
}
