//go:build linux

// Package console mirrors the raw HW command-word stream to a local
// console device for bring-up and diagnostics: a pseudo-terminal pair (so
// any terminal program can attach without real hardware) or a real serial
// port, the way KISS-over-pty and KISS-over-serial paths do for their own
// protocol.
package console

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// PtyMirror opens a pseudo-terminal pair and writes each word passed to
// Write as four big-endian bytes on the master side; the slave path is
// reported so an operator can `cat` or `xxd` it for a live trace.
type PtyMirror struct {
	master *os.File
	slave  *os.File
}

// OpenPtyMirror creates the pty pair and puts the slave side in raw mode,
// so the binary words reach a reader without waiting for a line end.
func OpenPtyMirror() (*PtyMirror, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("console: open pty: %w", err)
	}
	if tio, err := unix.IoctlGetTermios(int(slave.Fd()), unix.TCGETS); err == nil {
		tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
		tio.Oflag &^= unix.OPOST
		tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
		tio.Cflag = tio.Cflag&^(unix.CSIZE|unix.PARENB) | unix.CS8
		tio.Cc[unix.VMIN], tio.Cc[unix.VTIME] = 1, 0
		unix.IoctlSetTermios(int(slave.Fd()), unix.TCSETS, tio)
	}
	return &PtyMirror{master: master, slave: slave}, nil
}

// SlavePath is the path an operator attaches to (e.g. /dev/pts/7).
func (m *PtyMirror) SlavePath() string {
	return m.slave.Name()
}

// Write mirrors one HW word to the pty master side. Errors (typically
// "no reader attached yet") are non-fatal to the caller; this is a
// best-effort diagnostic tap, not a control channel.
func (m *PtyMirror) Write(word uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], word)
	_, err := m.master.Write(buf[:])
	return err
}

func (m *PtyMirror) Close() error {
	m.slave.Close()
	return m.master.Close()
}
