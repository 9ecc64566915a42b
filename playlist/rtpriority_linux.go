//go:build linux

package playlist

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/maemo32/awgserver/logging"
)

const schedFIFO = 1

// schedParam mirrors struct sched_param from sched.h; Go has no binding
// for sched_setscheduler in the unix package, so the raw syscall is used
// directly.
type schedParam struct {
	priority int32
}

// applyRealtimePriority tries to move the calling goroutine's OS thread
// onto SCHED_FIFO at a modest priority. It first locks the calling
// goroutine (Run's) to its current OS thread, so ticking stays on the
// thread that received the priority for the rest of the goroutine's life.
// Denied (non-root, no CAP_SYS_NICE) is expected in most environments and
// is not fatal.
func applyRealtimePriority(logger logging.Logger) {
	runtime.LockOSThread()
	param := schedParam{priority: 10}
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, schedFIFO, uintptr(unsafe.Pointer(&param)))
	if errno != 0 && logger != nil {
		logger.Warnf("player: sched_setscheduler(SCHED_FIFO) denied: %v, continuing at normal priority", errno)
	}
}
