package engine

import (
	"context"
	"time"

	"github.com/kairos-dev/kairos/internal/memory"
	"github.com/kairos-dev/kairos/internal/proof"
	"github.com/kairos-dev/kairos/internal/proofengine"
	"github.com/kairos-dev/kairos/internal/urischeme"
)

// Begin loads the first challenge for a chosen step, redirecting to step 1
// of its chain if the caller pointed at a later step.
func (e *Engine) Begin(ctx context.Context, uri, space string) (*StepResponse, error) {
	started := time.Now()
	id, err := urischeme.Parse(uri)
	if err != nil {
		return nil, &APIError{Code: "INVALID_INPUT", Status: 400, Message: err.Error()}
	}
	space = e.resolveSpace(space)

	step, err := e.loadStep(ctx, id, space)
	if err != nil {
		return nil, err
	}

	message := ""
	if step.Chain != nil && step.Chain.StepIndex != 1 {
		first, err := e.memory.GetChainFirst(ctx, *step)
		if err != nil {
			return nil, &APIError{Code: "LOAD_FAILED", Status: 500, Message: err.Error()}
		}
		if first != nil {
			step = first
			message = "Redirected to step 1 of this protocol chain."
		}
	}

	if err := e.proofStore.ResetRetry(ctx, step.UUID); err != nil {
		return nil, &APIError{Code: "STORE_FAILED", Status: 500, Message: err.Error()}
	}

	prevHash, err := e.expectedPrevHash(ctx, *step)
	if err != nil {
		return nil, &APIError{Code: "STORE_FAILED", Status: 500, Message: err.Error()}
	}

	challenge, err := e.proofEngine.BuildChallenge(ctx, *step, prevHash)
	if err != nil {
		return nil, &APIError{Code: "STORE_FAILED", Status: 500, Message: err.Error()}
	}

	nextAction, err := e.describeNextAction(ctx, *step)
	if err != nil {
		return nil, &APIError{Code: "STORE_FAILED", Status: 500, Message: err.Error()}
	}

	return &StepResponse{
		MustObey:    true,
		CurrentStep: &CurrentStep{URI: urischeme.New(step.UUID), Content: step.Text, MimeType: "text/markdown"},
		Challenge:   &challenge,
		NextAction:  nextAction,
		Message:     message,
		Metadata:    Metadata{DurationMs: time.Since(started).Milliseconds()},
	}, nil
}

// Next validates a submitted solution and hands back the following step's
// challenge, or a blocked response carrying a fresh challenge for the same
// step.
func (e *Engine) Next(ctx context.Context, uri string, solution *proof.Solution, space string) (*StepResponse, error) {
	started := time.Now()
	id, err := urischeme.Parse(uri)
	if err != nil {
		return nil, &APIError{Code: "INVALID_INPUT", Status: 400, Message: err.Error()}
	}
	space = e.resolveSpace(space)

	step, err := e.loadStep(ctx, id, space)
	if err != nil {
		return nil, err
	}

	prevHash, err := e.expectedPrevHash(ctx, *step)
	if err != nil {
		return nil, &APIError{Code: "STORE_FAILED", Status: 500, Message: err.Error()}
	}

	sub := proof.Solution{}
	if solution != nil {
		sub = *solution
	}
	result, err := e.proofEngine.Validate(ctx, *step, sub, prevHash)
	if err != nil {
		return nil, &APIError{Code: "VALIDATE_FAILED", Status: 500, Message: err.Error()}
	}
	if result.Outcome == proofengine.Blocked {
		return e.blockedResponse(result, started), nil
	}

	next, err := e.memory.GetChainNext(ctx, *step)
	if err != nil {
		return nil, &APIError{Code: "LOAD_FAILED", Status: 500, Message: err.Error()}
	}
	if next == nil {
		return &StepResponse{
			MustObey:   true,
			ProofHash:  result.ProofHash,
			NextAction: "call kairos_attest with " + urischeme.New(step.UUID) + " and an outcome",
			Message:    "Run complete.",
			Metadata:   Metadata{DurationMs: time.Since(started).Milliseconds()},
		}, nil
	}

	challenge, err := e.proofEngine.BuildChallenge(ctx, *next, result.ProofHash)
	if err != nil {
		return nil, &APIError{Code: "STORE_FAILED", Status: 500, Message: err.Error()}
	}
	nextAction, err := e.describeNextAction(ctx, *next)
	if err != nil {
		return nil, &APIError{Code: "STORE_FAILED", Status: 500, Message: err.Error()}
	}

	return &StepResponse{
		MustObey:    true,
		CurrentStep: &CurrentStep{URI: urischeme.New(next.UUID), Content: next.Text, MimeType: "text/markdown"},
		Challenge:   &challenge,
		ProofHash:   result.ProofHash,
		NextAction:  nextAction,
		Metadata:    Metadata{DurationMs: time.Since(started).Milliseconds()},
	}, nil
}

func (e *Engine) blockedResponse(result proofengine.Result, started time.Time) *StepResponse {
	return &StepResponse{
		MustObey:   result.MustObey,
		Challenge:  result.Challenge,
		ErrorCode:  result.ErrorCode,
		RetryCount: result.RetryCount,
		NextAction: result.NextAction,
		Metadata:   Metadata{DurationMs: time.Since(started).Milliseconds()},
	}
}

// describeNextAction tells the agent what to call after completing step:
// kairos_next pointed at the following step, or kairos_attest if step is
// the last in its chain.
func (e *Engine) describeNextAction(ctx context.Context, step memory.Step) (string, error) {
	next, err := e.memory.GetChainNext(ctx, step)
	if err != nil {
		return "", err
	}
	if next == nil {
		return "call kairos_attest with " + urischeme.New(step.UUID) + " and an outcome once you have completed this step", nil
	}
	return "call kairos_next with " + urischeme.New(next.UUID) + " and a solution matching the challenge", nil
}
