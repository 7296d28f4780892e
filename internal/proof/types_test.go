package proof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenesisHashIsStable(t *testing.T) {
	assert.Equal(t, GenesisHash, sha256Hex([]byte("genesis")))
}

func TestHashIsOrderIndependent(t *testing.T) {
	exit := 0
	a := Record{
		ResultID:      "r1",
		Type:          TypeShell,
		Status:        StatusSuccess,
		ExecutedAt:    "2026-07-31T00:00:00Z",
		ShellExitCode: &exit,
		ShellStdout:   "ok",
	}
	b := Record{
		ShellStdout:   "ok",
		ExecutedAt:    "2026-07-31T00:00:00Z",
		ShellExitCode: &exit,
		Status:        StatusSuccess,
		Type:          TypeShell,
		ResultID:      "r1",
	}

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestHashDiffersOnContentChange(t *testing.T) {
	a := Record{ResultID: "r1", Type: TypeComment, Status: StatusSuccess, CommentText: "hello"}
	b := Record{ResultID: "r1", Type: TypeComment, Status: StatusSuccess, CommentText: "goodbye"}

	ha, _ := Hash(a)
	hb, _ := Hash(b)
	assert.NotEqual(t, ha, hb)
}

func TestSolutionEffectiveProofHashFallback(t *testing.T) {
	s := Solution{PreviousProofHash: "deadbeef"}
	assert.Equal(t, "deadbeef", s.EffectiveProofHash())

	s2 := Solution{ProofHash: "cafebabe", PreviousProofHash: "deadbeef"}
	assert.Equal(t, "cafebabe", s2.EffectiveProofHash())
}
