package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicBonus(t *testing.T) {
	assert.Equal(t, 1.0, BasicBonus(OutcomeSuccess))
	assert.Equal(t, -0.2, BasicBonus(OutcomeFailure))
}

func TestAttestAccumulatesCounters(t *testing.T) {
	counters := Counters{}
	counters, total, score, tag := Attest(counters, OutcomeSuccess, nil)

	assert.Equal(t, 1, counters.RetrievalCount)
	assert.Equal(t, 1, counters.SuccessCount)
	assert.Greater(t, total, 1.0)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, "excellent", tag)
}

func TestAttestWithExplicitBonus(t *testing.T) {
	bonus := 0.5
	_, total, _, _ := Attest(Counters{}, OutcomeSuccess, &bonus)
	assert.InDelta(t, 1.0+0.1+0.5, total, 1e-9)
}

func TestStepQualityTagBuckets(t *testing.T) {
	assert.Equal(t, "excellent", StepQualityTag(0.9))
	assert.Equal(t, "good", StepQualityTag(0.6))
	assert.Equal(t, "needs_improvement", StepQualityTag(0.3))
	assert.Equal(t, "poor", StepQualityTag(0.1))
}
