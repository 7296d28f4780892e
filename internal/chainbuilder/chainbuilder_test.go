package chainbuilder

import (
	"testing"

	"github.com/kairos-dev/kairos/internal/proof"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleChainWithChallengeBlocks(t *testing.T) {
	doc := "# Build and Test\n" +
		"## STEP 1) Build the project\n" +
		"Run `make build` and confirm the binary exists.\n" +
		"```json\n" +
		"{\"challenge\": {\"type\": \"comment\", \"comment\": {\"min_length\": 10}}}\n" +
		"```\n" +
		"## 2. Test the project\n" +
		"Run `make test` and confirm all tests pass.\n"

	chains := Parse(doc)
	require.Len(t, chains, 1)
	assert.Equal(t, "Build and Test", chains[0].Label)
	require.Len(t, chains[0].Steps, 2)

	step1 := chains[0].Steps[0]
	assert.Equal(t, "Build the project", step1.Label)
	assert.Equal(t, 1, step1.Chain.StepIndex)
	assert.Equal(t, 2, step1.Chain.StepCount)
	require.NotNil(t, step1.ProofDef)
	assert.Equal(t, proof.TypeComment, step1.ProofDef.Type)
	assert.True(t, step1.ProofDef.Required)
	assert.Contains(t, step1.Tags, "make")

	step2 := chains[0].Steps[1]
	assert.Equal(t, "Test the project", step2.Label)
	assert.Nil(t, step2.ProofDef)
	assert.Equal(t, 2, step2.Chain.StepIndex)
}

func TestParseProofOfWorkShorthand(t *testing.T) {
	doc := "# Deploy\n" +
		"Deploy the service to staging and verify it responds.\n" +
		"PROOF OF WORK: [timeout 30s] curl -f https://staging.example.com/health\n"

	chains := Parse(doc)
	require.Len(t, chains, 1)
	require.Len(t, chains[0].Steps, 1)

	step := chains[0].Steps[0]
	require.NotNil(t, step.ProofDef)
	assert.Equal(t, proof.TypeShell, step.ProofDef.Type)
	require.NotNil(t, step.ProofDef.Shell)
	assert.Equal(t, 30, step.ProofDef.Shell.TimeoutSeconds)
	assert.Contains(t, step.ProofDef.Shell.Cmd, "curl")
}

func TestParseProofOfWorkDefaultTimeout(t *testing.T) {
	doc := "# Deploy\n" +
		"Deploy and verify.\n" +
		"PROOF OF WORK: ./verify.sh\n"

	chains := Parse(doc)
	step := chains[0].Steps[0]
	require.NotNil(t, step.ProofDef)
	assert.Equal(t, 60, step.ProofDef.Shell.TimeoutSeconds)
}

func TestParseMultipleH1Chains(t *testing.T) {
	doc := "# Build and Test\nBuild it.\n\n# Deploy\nDeploy it.\n"
	chains := Parse(doc)
	require.Len(t, chains, 2)
	assert.Equal(t, "Build and Test", chains[0].Label)
	assert.Equal(t, "Deploy", chains[1].Label)
}

func TestParseNoHeadingsUsesSingleUnlabeledChain(t *testing.T) {
	doc := "Just some plain instructions with no headings at all.\n"
	chains := Parse(doc)
	require.Len(t, chains, 1)
	assert.Equal(t, "", chains[0].Label)
	require.Len(t, chains[0].Steps, 1)
}
