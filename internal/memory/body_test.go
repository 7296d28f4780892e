package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBodyWithMarkers(t *testing.T) {
	text := "preamble\nKAIROS:BODY-START\nthe real body\nKAIROS:BODY-END\ntrailer"
	assert.Equal(t, "the real body", ExtractBody(text))
}

func TestExtractBodyWithoutMarkersIsUnchanged(t *testing.T) {
	text := "just plain text"
	assert.Equal(t, text, ExtractBody(text))
}
