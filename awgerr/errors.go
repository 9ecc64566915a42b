// Package awgerr defines the error kinds shared by the AWG control server's
// subsystems.
package awgerr

import "errors"

// Sentinel kinds. Callers compare with errors.Is; wrapped errors carry
// additional context via fmt.Errorf("...: %w", Kind).
var (
	// HwUnavailable means the peripheral register windows could not be
	// mapped. Fatal at startup; not expected after that.
	HwUnavailable = errors.New("hardware unavailable")

	// InvalidArgument means a caller-supplied value violates a documented
	// range or precondition (bad list id, zero/oversized total_frames,
	// an out-of-range frame word count, finalizing an empty list).
	InvalidArgument = errors.New("invalid argument")

	// Overfull means a push was attempted against a list that has
	// already received total_frames frames.
	Overfull = errors.New("list overfull")

	// OutOfMemory means a growable buffer allocation failed.
	OutOfMemory = errors.New("out of memory")

	// Io covers network read/write/accept failures, including timeouts.
	Io = errors.New("i/o error")

	// PeerClosed means the remote end closed the connection cleanly.
	PeerClosed = errors.New("peer closed connection")
)
