package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/maemo32/awgserver/awgerr"
)

// MaxDirectWords bounds a single direct-port block.
const MaxDirectWords = 64

// ReadDirectBlock reads one `u16 count` + `count*u32` block from the
// direct port and returns the decoded words in host order.
func ReadDirectBlock(r io.Reader) ([]uint32, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("wire: read direct count: %w: %w", err, awgerr.Io)
	}
	if count < 1 || count > MaxDirectWords {
		return nil, fmt.Errorf("wire: direct count=%d out of [1,%d]: %w", count, MaxDirectWords, awgerr.InvalidArgument)
	}

	words := make([]uint32, count)
	if err := binary.Read(r, binary.BigEndian, words); err != nil {
		return nil, fmt.Errorf("wire: read direct words: %w: %w", err, awgerr.Io)
	}
	return words, nil
}

// WriteDirectBlock encodes words as a direct-port block, for bench/test
// drivers.
func WriteDirectBlock(w io.Writer, words []uint32) error {
	if len(words) < 1 || len(words) > MaxDirectWords {
		return fmt.Errorf("wire: direct count=%d out of [1,%d]: %w", len(words), MaxDirectWords, awgerr.InvalidArgument)
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(words))); err != nil {
		return fmt.Errorf("wire: write direct count: %w: %w", err, awgerr.Io)
	}
	if err := binary.Write(w, binary.BigEndian, words); err != nil {
		return fmt.Errorf("wire: write direct words: %w: %w", err, awgerr.Io)
	}
	return nil
}
