package hwcmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestWord_RoundTrips(t *testing.T) {
	w := Word(OpGain, 1, 5, 0x1234)

	op, ch, tone, payload := DecodeWord(w)

	assert.Equal(t, OpGain, op)
	assert.Equal(t, uint8(1), ch)
	assert.Equal(t, uint8(5), tone)
	assert.Equal(t, uint32(0x1234), payload)
}

func TestWord_ReservedBitsAlwaysZero(t *testing.T) {
	w := Word(OpIndex, 1, 7, 0xFFFFFFFF)

	assert.Zero(t, w>>20&0xF, "bits [23:20] are reserved and must stay zero")
}

func TestCommitWord_IsOpcodeF(t *testing.T) {
	op, _, _, payload := DecodeWord(CommitWord())

	assert.Equal(t, OpCommit, op)
	assert.Zero(t, payload)
}

func TestZeroGainFrame_OneGainPerSlotPlusOneCommit(t *testing.T) {
	frame := ZeroGainFrame()

	assert.Len(t, frame, NumChannels*NumTones+1, "one GAIN=0 word per (channel,tone) slot plus a trailing COMMIT")

	seen := map[[2]uint8]bool{}
	for _, w := range frame[:len(frame)-1] {
		op, ch, tone, payload := DecodeWord(w)
		assert.Equal(t, OpGain, op)
		assert.Zero(t, payload, "zero-gain frame must set gain to 0")
		seen[[2]uint8{ch, tone}] = true
	}
	assert.Len(t, seen, NumChannels*NumTones, "every (channel,tone) pair must appear exactly once")

	last := frame[len(frame)-1]
	op, _, _, _ := DecodeWord(last)
	assert.Equal(t, OpCommit, op, "zero-gain frame must end with COMMIT")
}

// Property: Word/DecodeWord round-trip for any legal channel/tone/payload,
// and the opcode nibble is always whatever was requested regardless of the
// other fields.
func TestWord_Property_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		op := Opcode(rapid.SampledFrom([]uint8{uint8(OpIndex), uint8(OpGain), uint8(OpCommit)}).Draw(t, "op"))
		ch := uint8(rapid.IntRange(0, 1).Draw(t, "ch"))
		tone := uint8(rapid.IntRange(0, 7).Draw(t, "tone"))
		payload := uint32(rapid.IntRange(0, 0xFFFFF).Draw(t, "payload"))

		w := Word(op, ch, tone, payload)
		gotOp, gotCh, gotTone, gotPayload := DecodeWord(w)

		assert.Equal(t, op, gotOp)
		assert.Equal(t, ch, gotCh)
		assert.Equal(t, tone, gotTone)
		assert.Equal(t, payload, gotPayload)
	})
}
