package console

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/term"
)

// SerialMirror writes each word to a real serial port in raw mode,
// generalising serial_port_open/write from a KISS byte stream to this
// server's fixed 4-byte word mirror.
type SerialMirror struct {
	fd *term.Term
}

// supportedBauds mirrors serial_port_open's accepted rates.
var supportedBauds = map[int]bool{
	1200: true, 2400: true, 4800: true, 9600: true,
	19200: true, 38400: true, 57600: true, 115200: true,
}

// OpenSerialMirror opens device in raw mode at baud (0 leaves the current
// speed alone; an unsupported rate falls back to 4800, as
// serial_port_open does).
func OpenSerialMirror(device string, baud int) (*SerialMirror, error) {
	fd, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("console: open serial port %s: %w", device, err)
	}

	switch {
	case baud == 0:
	case supportedBauds[baud]:
		fd.SetSpeed(baud)
	default:
		fd.SetSpeed(4800)
	}

	return &SerialMirror{fd: fd}, nil
}

// Write mirrors one HW word as four big-endian bytes.
func (m *SerialMirror) Write(word uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], word)
	_, err := m.fd.Write(buf[:])
	return err
}

func (m *SerialMirror) Close() error {
	return m.fd.Close()
}
