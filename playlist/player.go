package playlist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maemo32/awgserver/awgerr"
	"github.com/maemo32/awgserver/internal/hwcmd"
	"github.com/maemo32/awgserver/internal/metrics"
	"github.com/maemo32/awgserver/logging"
)

// PublishFunc is notified whenever a list's externally observable state
// changes. It is always invoked without Player's internal lock held, so
// it is free to take its own locks (a notifier hub, say) without risking
// lock-order inversion.
type PublishFunc func(listID int, state ListState)

// Player is the ping-pong emitter: it ticks at a fixed period, draining
// words from whichever of its two lists is currently selected, and
// switches to the other list the instant the current one is exhausted —
// emitting that list's first frame in the very same tick, with no gap.
type Player struct {
	mu sync.Mutex

	lists         [2]list
	playing       bool
	curList       int
	nextList      int
	curFrame      uint32
	suppressIdle  [2]bool

	period time.Duration
	dev    *hwcmd.Device
	logger logging.Logger
	rec    metrics.Recorder

	publish PublishFunc

	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewPlayer returns a Player with both lists Idle and playback stopped.
// publish may be nil, in which case state changes are simply not reported.
// logger may be nil, in which case Player does not log.
func NewPlayer(dev *hwcmd.Device, period time.Duration, publish PublishFunc, logger logging.Logger) *Player {
	if publish == nil {
		publish = func(int, ListState) {}
	}
	return &Player{
		nextList: 1,
		period:   period,
		dev:      dev,
		logger:   logger,
		rec:      metrics.NoOp{},
		publish:  publish,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// SetMetrics installs rec as the Player's metrics sink. Safe to call once
// before Run starts; nil resets to a no-op sink.
func (p *Player) SetMetrics(rec metrics.Recorder) {
	if rec == nil {
		rec = metrics.NoOp{}
	}
	p.rec = rec
}

// Run drives the tick loop on an absolute-deadline schedule until ctx is
// cancelled or Stop is called. It is meant to run in its own goroutine for
// the lifetime of the process.
func (p *Player) Run(ctx context.Context) {
	defer close(p.stopped)

	applyRealtimePriority(p.logger)

	deadline := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		default:
		}

		deadline = deadline.Add(p.period)
		if wait := time.Until(deadline); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			case <-p.stop:
				timer.Stop()
				return
			}
		}

		p.rec.TickJitter(time.Since(deadline))
		p.tick()
	}
}

// Stop halts Run's loop and waits for it to return.
func (p *Player) Stop() {
	p.once.Do(func() { close(p.stop) })
	<-p.stopped
}

// tick emits at most one frame's worth of HW words. When the current list
// finishes, it switches to the other list (if Ready) or stops playing, and
// — if it switched — loops once more within the same call so the new
// list's first frame goes out in this same tick, not the next one.
func (p *Player) tick() {
	for {
		p.mu.Lock()
		if !p.playing {
			p.mu.Unlock()
			return
		}

		cur := &p.lists[p.curList]
		if cur.state != StateReady || p.curFrame >= cur.totalFrames {
			finished := p.curList
			switched := false

			if p.lists[p.nextList].state == StateReady && p.lists[p.nextList].totalFrames > 0 {
				p.curList, p.nextList = p.nextList, p.curList
				p.curFrame = 0
				switched = true
			} else {
				p.playing = false
			}

			p.lists[finished].clear()
			suppressed := p.suppressIdle[finished]
			p.suppressIdle[finished] = false
			p.mu.Unlock()

			p.rec.ListState(finished, int(StateIdle))
			if !suppressed {
				p.publish(finished, StateIdle)
			}
			if switched {
				continue
			}
			return
		}

		frame, _ := cur.get(p.curFrame)
		p.curFrame++
		p.mu.Unlock()

		if err := p.dev.SendWords(frame); err != nil {
			if p.logger != nil {
				p.logger.Warnf("player: send_words: %v", err)
			}
		} else {
			p.rec.FrameEmitted(p.curList)
		}
		return
	}
}

// beginList validates and prepares listID for loading. notify controls
// whether the Loading transition is published (Reset's internal silent
// drain suppresses it).
func (p *Player) beginList(listID int, total uint32, notify bool) error {
	if listID != 0 && listID != 1 {
		return fmt.Errorf("player: list id %d out of range: %w", listID, awgerr.InvalidArgument)
	}

	p.mu.Lock()
	err := p.lists[listID].prepare(total)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	p.rec.ListState(listID, int(StateLoading))
	if notify {
		p.publish(listID, StateLoading)
	}
	return nil
}

// pushList appends one frame to listID, auto-starting playback if the list
// becomes Ready while nothing is currently playing.
func (p *Player) pushList(listID int, words []uint32, notify bool) error {
	if listID != 0 && listID != 1 {
		return fmt.Errorf("player: list id %d out of range: %w", listID, awgerr.InvalidArgument)
	}

	p.mu.Lock()
	l := &p.lists[listID]
	err := l.push(words)
	becameReady := err == nil && l.state == StateReady
	p.maybeAutoStartLocked(listID, becameReady)
	p.mu.Unlock()

	if err != nil {
		return err
	}
	if becameReady {
		p.rec.ListState(listID, int(StateReady))
		if notify {
			p.publish(listID, StateReady)
		}
	}
	return nil
}

// endList finalizes listID, auto-starting playback if it becomes Ready
// while nothing is currently playing. Finalizing an already-Ready list is
// a silent no-op (see list.finalize).
func (p *Player) endList(listID int, notify bool) error {
	if listID != 0 && listID != 1 {
		return fmt.Errorf("player: list id %d out of range: %w", listID, awgerr.InvalidArgument)
	}

	p.mu.Lock()
	l := &p.lists[listID]
	wasReady := l.state == StateReady
	err := l.finalize()
	becameReady := err == nil && !wasReady && l.state == StateReady
	p.maybeAutoStartLocked(listID, becameReady)
	p.mu.Unlock()

	if err != nil {
		return err
	}
	if becameReady {
		p.rec.ListState(listID, int(StateReady))
		if notify {
			p.publish(listID, StateReady)
		}
	}
	return nil
}

// maybeAutoStartLocked must be called with p.mu held. If listID just
// became Ready and the player is idle, it starts playback from listID.
func (p *Player) maybeAutoStartLocked(listID int, becameReady bool) {
	if !becameReady || p.playing {
		return
	}
	p.curList = listID
	p.nextList = 1 - listID
	p.curFrame = 0
	p.playing = true
}

// PreloadBegin starts loading listID with total frames to come.
func (p *Player) PreloadBegin(listID int, total uint32) error {
	return p.beginList(listID, total, true)
}

// PreloadPush appends one frame of words to listID.
func (p *Player) PreloadPush(listID int, words []uint32) error {
	return p.pushList(listID, words, true)
}

// PreloadEnd finalizes listID, making it Ready for play.
func (p *Player) PreloadEnd(listID int) error {
	return p.endList(listID, true)
}

// CancelLoad discards whatever is in listID and returns it to Idle,
// publishing the transition if the list was actually in progress. Used
// when a connection that owned a partial load disconnects.
func (p *Player) CancelLoad(listID int) {
	p.mu.Lock()
	wasLoading := p.lists[listID].state != StateIdle
	p.lists[listID].clear()
	p.mu.Unlock()

	if wasLoading {
		p.publish(listID, StateIdle)
	}
}

// Status returns listID's current externally observable state.
func (p *Player) Status(listID int) ListState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lists[listID].state
}

// Reset performs the synchronous zero-gain drain: it stops playback
// immediately, then loads and plays out flushFrames zero-gain frames on
// list 0, waits for it to return to Idle, then repeats on list 1. No
// Loading/Ready notifications are published during the drain; the only
// notifications Reset produces are the two final Idle transitions, for
// list 0 then list 1, in that order.
func (p *Player) Reset(ctx context.Context, flushFrames int) error {
	p.mu.Lock()
	p.playing = false
	p.lists[0].clear()
	p.lists[1].clear()
	p.mu.Unlock()

	zero := hwcmd.ZeroGainFrame()
	for _, listID := range [2]int{0, 1} {
		if err := p.silentDrain(ctx, listID, flushFrames, zero); err != nil {
			return err
		}
	}

	p.publish(0, StateIdle)
	p.publish(1, StateIdle)
	return nil
}

func (p *Player) silentDrain(ctx context.Context, listID, n int, frame []uint32) error {
	p.mu.Lock()
	p.suppressIdle[listID] = true
	p.mu.Unlock()

	if err := p.beginList(listID, uint32(n), false); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := p.pushList(listID, frame, false); err != nil {
			return err
		}
	}
	return p.waitForIdle(ctx, listID)
}

func (p *Player) waitForIdle(ctx context.Context, listID int) error {
	wait := p.period
	if wait <= 0 {
		wait = time.Millisecond
	}
	ticker := time.NewTicker(wait)
	defer ticker.Stop()

	for {
		if p.Status(listID) == StateIdle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
