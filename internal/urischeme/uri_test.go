package urischeme

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	id := uuid.New().String()
	parsed, err := Parse(New(id))
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"kairos://mem/",
		"kairos://mem/not-a-uuid",
		"http://mem/" + uuid.New().String(),
	}
	for _, c := range cases {
		_, err := Parse(c)
		assert.ErrorIs(t, err, ErrInvalidURI, "uri=%q", c)
	}
}

func TestSentinelsAreReserved(t *testing.T) {
	assert.True(t, IsSentinel(CreateNewUUID))
	assert.True(t, IsSentinel(RefineSearchUUID))
	assert.False(t, IsSentinel(uuid.New().String()))
	assert.Equal(t, scheme+CreateNewUUID, CreateNewURI)
}
