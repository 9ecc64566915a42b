// Package wire implements the three wire protocols the server exposes:
// the queued-port command protocol, the direct-port count-prefixed word
// block, and the notifier-port text-line status stream. All integer
// fields are big-endian on the wire, following the framing conventions
// direwolf's AGWPE codec uses for its own binary messages.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/maemo32/awgserver/awgerr"
)

// Opcode is a queued-port command tag.
type Opcode byte

const (
	OpPreloadBegin Opcode = 'B'
	OpPreloadPush  Opcode = 'P'
	OpPreloadEnd   Opcode = 'E'
	OpReset        Opcode = 'Z'
	OpShutdown     Opcode = 'X'
)

func (op Opcode) String() string {
	switch op {
	case OpPreloadBegin:
		return "PreloadBegin"
	case OpPreloadPush:
		return "PreloadPush"
	case OpPreloadEnd:
		return "PreloadEnd"
	case OpReset:
		return "Reset"
	case OpShutdown:
		return "Shutdown"
	default:
		return fmt.Sprintf("Opcode(%#02x)", byte(op))
	}
}

// MaxFrameWords bounds a single PreloadPush frame.
const MaxFrameWords = 64

// Command is one decoded queued-port record.
type Command struct {
	Op          Opcode
	ListID      uint8
	TotalFrames uint32 // PreloadBegin only
	Words       []uint32 // PreloadPush only
}

// ReadCommand reads and decodes exactly one queued-port record from r. Any
// short read, unknown opcode, or out-of-range length is reported as an
// error wrapping awgerr.Io or awgerr.InvalidArgument; callers drop the
// connection on any error, per the queued server's protocol-error policy.
func ReadCommand(r io.Reader) (Command, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return Command{}, fmt.Errorf("wire: read opcode: %w: %w", err, awgerr.Io)
	}

	cmd := Command{Op: Opcode(tag[0])}

	switch cmd.Op {
	case OpPreloadBegin:
		var body struct {
			ListID      uint8
			TotalFrames uint32
		}
		if err := binary.Read(r, binary.BigEndian, &body); err != nil {
			return Command{}, fmt.Errorf("wire: read PreloadBegin body: %w: %w", err, awgerr.Io)
		}
		cmd.ListID = body.ListID
		cmd.TotalFrames = body.TotalFrames

	case OpPreloadPush:
		var header struct {
			ListID uint8
			Count  uint16
		}
		if err := binary.Read(r, binary.BigEndian, &header); err != nil {
			return Command{}, fmt.Errorf("wire: read PreloadPush header: %w: %w", err, awgerr.Io)
		}
		if header.Count < 1 || header.Count > MaxFrameWords {
			return Command{}, fmt.Errorf("wire: PreloadPush count=%d out of [1,%d]: %w", header.Count, MaxFrameWords, awgerr.InvalidArgument)
		}
		words := make([]uint32, header.Count)
		if err := binary.Read(r, binary.BigEndian, words); err != nil {
			return Command{}, fmt.Errorf("wire: read PreloadPush words: %w: %w", err, awgerr.Io)
		}
		cmd.ListID = header.ListID
		cmd.Words = words

	case OpPreloadEnd:
		var listID uint8
		if err := binary.Read(r, binary.BigEndian, &listID); err != nil {
			return Command{}, fmt.Errorf("wire: read PreloadEnd body: %w: %w", err, awgerr.Io)
		}
		cmd.ListID = listID

	case OpReset, OpShutdown:
		// No payload.

	default:
		return Command{}, fmt.Errorf("wire: unknown opcode %#02x: %w", tag[0], awgerr.InvalidArgument)
	}

	return cmd, nil
}

// WriteCommand encodes cmd onto w, for the client side of this protocol
// (bench/test drivers).
func WriteCommand(w io.Writer, cmd Command) error {
	if _, err := w.Write([]byte{byte(cmd.Op)}); err != nil {
		return fmt.Errorf("wire: write opcode: %w: %w", err, awgerr.Io)
	}

	switch cmd.Op {
	case OpPreloadBegin:
		body := struct {
			ListID      uint8
			TotalFrames uint32
		}{cmd.ListID, cmd.TotalFrames}
		if err := binary.Write(w, binary.BigEndian, body); err != nil {
			return fmt.Errorf("wire: write PreloadBegin body: %w: %w", err, awgerr.Io)
		}

	case OpPreloadPush:
		if len(cmd.Words) < 1 || len(cmd.Words) > MaxFrameWords {
			return fmt.Errorf("wire: PreloadPush count=%d out of [1,%d]: %w", len(cmd.Words), MaxFrameWords, awgerr.InvalidArgument)
		}
		header := struct {
			ListID uint8
			Count  uint16
		}{cmd.ListID, uint16(len(cmd.Words))}
		if err := binary.Write(w, binary.BigEndian, header); err != nil {
			return fmt.Errorf("wire: write PreloadPush header: %w: %w", err, awgerr.Io)
		}
		if err := binary.Write(w, binary.BigEndian, cmd.Words); err != nil {
			return fmt.Errorf("wire: write PreloadPush words: %w: %w", err, awgerr.Io)
		}

	case OpPreloadEnd:
		if err := binary.Write(w, binary.BigEndian, cmd.ListID); err != nil {
			return fmt.Errorf("wire: write PreloadEnd body: %w: %w", err, awgerr.Io)
		}

	case OpReset, OpShutdown:
		// No payload.

	default:
		return fmt.Errorf("wire: unknown opcode %#02x: %w", byte(cmd.Op), awgerr.InvalidArgument)
	}

	return nil
}
