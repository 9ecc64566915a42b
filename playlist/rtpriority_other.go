//go:build !linux

package playlist

import "github.com/maemo32/awgserver/logging"

// applyRealtimePriority is a no-op outside Linux.
func applyRealtimePriority(logger logging.Logger) {}
