//go:build !linux

package console

import "fmt"

// PtyMirror is unavailable outside Linux; OpenPtyMirror always fails.
type PtyMirror struct{}

func OpenPtyMirror() (*PtyMirror, error) {
	return nil, fmt.Errorf("console: pty mirror is only supported on linux")
}

func (m *PtyMirror) SlavePath() string    { return "" }
func (m *PtyMirror) Write(word uint32) error { return fmt.Errorf("console: pty mirror unavailable") }
func (m *PtyMirror) Close() error          { return nil }
