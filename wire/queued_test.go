package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maemo32/awgserver/awgerr"
)

func TestCommand_PreloadBeginRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	want := Command{Op: OpPreloadBegin, ListID: 1, TotalFrames: 42}
	require.NoError(t, WriteCommand(&buf, want))

	got, err := ReadCommand(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCommand_PreloadPushRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	want := Command{Op: OpPreloadPush, ListID: 0, Words: []uint32{0xABCD0001, 0xABCD0002}}
	require.NoError(t, WriteCommand(&buf, want))

	got, err := ReadCommand(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCommand_PreloadPushRejectsZeroCount(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCommand(&buf, Command{Op: OpPreloadPush, Words: nil})
	require.ErrorIs(t, err, awgerr.InvalidArgument)
}

func TestCommand_PreloadPushRejectsOverlength(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCommand(&buf, Command{Op: OpPreloadPush, Words: make([]uint32, MaxFrameWords+1)})
	require.ErrorIs(t, err, awgerr.InvalidArgument)
}

func TestReadCommand_RejectsOverlengthOnWire(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(OpPreloadPush))
	buf.WriteByte(0) // list id
	buf.Write([]byte{0, 65}) // count = 65, big-endian

	_, err := ReadCommand(&buf)
	require.ErrorIs(t, err, awgerr.InvalidArgument)
}

func TestCommand_PreloadEndRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	want := Command{Op: OpPreloadEnd, ListID: 1}
	require.NoError(t, WriteCommand(&buf, want))

	got, err := ReadCommand(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCommand_ResetAndShutdownHaveNoPayload(t *testing.T) {
	for _, op := range []Opcode{OpReset, OpShutdown} {
		var buf bytes.Buffer
		require.NoError(t, WriteCommand(&buf, Command{Op: op}))
		assert.Equal(t, 1, buf.Len())

		got, err := ReadCommand(&buf)
		require.NoError(t, err)
		assert.Equal(t, op, got.Op)
	}
}

func TestReadCommand_UnknownOpcodeIsInvalidArgument(t *testing.T) {
	buf := bytes.NewBufferString("Q")
	_, err := ReadCommand(buf)
	require.ErrorIs(t, err, awgerr.InvalidArgument)
}

func TestReadCommand_ShortReadIsIo(t *testing.T) {
	buf := bytes.NewBufferString("")
	_, err := ReadCommand(buf)
	require.ErrorIs(t, err, awgerr.Io)
}
