package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusLine_RoundTrips(t *testing.T) {
	line := FormatStatusLine(1, "READY")
	assert.Equal(t, "LIST1:READY\n", line)

	id, state, err := ParseStatusLine(line)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.Equal(t, "READY", state)
}

func TestParseStatusLine_RejectsMalformed(t *testing.T) {
	_, _, err := ParseStatusLine("NOPE\n")
	require.Error(t, err)

	_, _, err = ParseStatusLine("LISTx:READY\n")
	require.Error(t, err)
}
