// Package playlist implements the frame list and ping-pong player: a
// growable word buffer with per-frame offset/count metadata, and the
// periodic, absolute-deadline emitter that alternates between two such
// lists without a missed or duplicated tick.
package playlist

import (
	"fmt"

	"github.com/maemo32/awgserver/awgerr"
)

// ListState is a list's externally observable state. Playing/Draining are
// implicit in the player's current selection and are never reported here.
type ListState int

const (
	StateIdle ListState = iota
	StateLoading
	StateReady
)

func (s ListState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateLoading:
		return "LOADING"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

const (
	// MaxFramesPerList is a compile-time cap on frames per list.
	MaxFramesPerList = 2_000_000
	// MaxWordsPerFrame bounds the number of words a single frame may hold.
	MaxWordsPerFrame = 64
	// wordsGrowStep is the ~4 Ki word geometric growth increment, chosen
	// rather than relying on whatever growth factor append() picks.
	wordsGrowStep = 4096
)

// list is the mutable frame buffer. All methods assume the caller already
// holds whatever lock protects list-pair state (Player's mu) — list
// itself is not safe for concurrent use.
type list struct {
	offsets      []uint32
	counts       []uint16
	words        []uint32
	totalFrames  uint32
	loadedFrames uint32
	state        ListState
}

// prepare releases prior storage and allocates metadata for totalFrames
// frames.
func (l *list) prepare(totalFrames uint32) error {
	if totalFrames == 0 || totalFrames > MaxFramesPerList {
		return fmt.Errorf("prepare: total_frames=%d: %w", totalFrames, awgerr.InvalidArgument)
	}

	*l = list{
		offsets:     make([]uint32, 0, totalFrames),
		counts:      make([]uint16, 0, totalFrames),
		totalFrames: totalFrames,
		state:       StateLoading,
	}
	return nil
}

// ensureWordsCap grows l.words in wordsGrowStep-sized increments so that
// at least `additional` more words can be appended without a further
// reallocation.
func (l *list) ensureWordsCap(additional int) {
	needed := len(l.words) + additional
	if cap(l.words) >= needed {
		return
	}

	newCap := cap(l.words)
	if newCap == 0 {
		newCap = wordsGrowStep
	}
	for newCap < needed {
		newCap += wordsGrowStep
	}

	grown := make([]uint32, len(l.words), newCap)
	copy(grown, l.words)
	l.words = grown
}

// push appends one frame.
func (l *list) push(words []uint32) error {
	if l.state != StateLoading {
		return fmt.Errorf("push: list state is %s, not Loading: %w", l.state, awgerr.InvalidArgument)
	}
	if l.loadedFrames == l.totalFrames {
		return fmt.Errorf("push: list already has %d/%d frames: %w", l.loadedFrames, l.totalFrames, awgerr.Overfull)
	}
	if len(words) < 1 || len(words) > MaxWordsPerFrame {
		return fmt.Errorf("push: frame has %d words, want [1,%d]: %w", len(words), MaxWordsPerFrame, awgerr.InvalidArgument)
	}

	offset := uint32(len(l.words))
	l.ensureWordsCap(len(words))
	l.words = append(l.words, words...)
	l.offsets = append(l.offsets, offset)
	l.counts = append(l.counts, uint16(len(words)))
	l.loadedFrames++

	if l.loadedFrames == l.totalFrames {
		l.state = StateReady
	}
	return nil
}

// finalize marks the list Ready, truncating totalFrames to the frames
// actually loaded. Calling finalize a second time on an already-Ready list
// succeeds silently (see DESIGN.md).
func (l *list) finalize() error {
	if l.state == StateReady {
		return nil
	}
	if l.loadedFrames == 0 {
		return fmt.Errorf("finalize: list has 0 loaded frames: %w", awgerr.InvalidArgument)
	}
	l.totalFrames = l.loadedFrames
	l.state = StateReady
	return nil
}

// clear frees all storage and resets to Idle.
func (l *list) clear() {
	*l = list{}
}

// get returns a borrow of the i-th frame's words without copying. The
// borrow is only valid until the next mutation of this list (prepare or
// clear); playlist.Player's locking discipline guarantees no such
// mutation races a borrow still in flight — see player.go.
func (l *list) get(i uint32) ([]uint32, bool) {
	if i >= l.loadedFrames {
		return nil, false
	}
	off := l.offsets[i]
	n := l.counts[i]
	return l.words[off : off+uint32(n)], true
}

// wordsUsed reports the running total of words committed across loaded
// frames, for invariant checks.
func (l *list) wordsUsed() int {
	total := 0
	for _, c := range l.counts[:l.loadedFrames] {
		total += int(c)
	}
	return total
}
