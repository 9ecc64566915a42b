package playlist

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maemo32/awgserver/awgerr"
	"github.com/maemo32/awgserver/internal/hwcmd"
)

func newTestPlayer(t *testing.T, publish PublishFunc) (*Player, *hwcmd.FakeBackend) {
	t.Helper()
	fake := hwcmd.NewFakeBackend()
	dev := hwcmd.NewDevice(fake)
	require.NoError(t, dev.Init())
	return NewPlayer(dev, time.Millisecond, publish, nil), fake
}

func TestPlayer_AutoStartsAndEmitsFramesInOrder(t *testing.T) {
	var mu sync.Mutex
	var events []string
	record := func(id int, s ListState) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, fmt.Sprintf("%d:%s", id, s))
	}

	p, fake := newTestPlayer(t, record)

	require.NoError(t, p.PreloadBegin(0, 2))
	require.NoError(t, p.PreloadPush(0, []uint32{1, 2}))
	require.NoError(t, p.PreloadPush(0, []uint32{3}))

	assert.Equal(t, StateReady, p.Status(0))

	p.tick()
	p.tick()
	assert.Equal(t, []uint32{1, 2, 3}, fake.Words())

	p.tick()
	assert.Equal(t, StateIdle, p.Status(0))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"0:LOADING", "0:READY", "0:IDLE"}, events)
}

func TestPlayer_SwitchesToNextListInSameTick(t *testing.T) {
	p, fake := newTestPlayer(t, nil)

	require.NoError(t, p.PreloadBegin(0, 1))
	require.NoError(t, p.PreloadPush(0, []uint32{0xA}))

	require.NoError(t, p.PreloadBegin(1, 1))
	require.NoError(t, p.PreloadPush(1, []uint32{0xB}))

	p.tick()
	assert.Equal(t, []uint32{0xA}, fake.Words())

	p.tick()
	assert.Equal(t, []uint32{0xA, 0xB}, fake.Words())
	assert.Equal(t, 1, p.curList)
	assert.True(t, p.playing)
}

func TestPlayer_StopsWhenNextListNotReady(t *testing.T) {
	p, fake := newTestPlayer(t, nil)

	require.NoError(t, p.PreloadBegin(0, 1))
	require.NoError(t, p.PreloadPush(0, []uint32{0x1}))

	p.tick()
	assert.Equal(t, []uint32{0x1}, fake.Words())

	p.tick()
	assert.False(t, p.playing)
	assert.Equal(t, StateIdle, p.Status(0))

	p.tick()
	assert.Equal(t, []uint32{0x1}, fake.Words(), "no further words once stopped")
}

func TestPlayer_CancelLoad_PublishesIdleOnlyIfInProgress(t *testing.T) {
	var mu sync.Mutex
	var events []string
	record := func(id int, s ListState) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, fmt.Sprintf("%d:%s", id, s))
	}

	p, _ := newTestPlayer(t, record)

	p.CancelLoad(0)
	mu.Lock()
	assert.Empty(t, events)
	mu.Unlock()

	require.NoError(t, p.PreloadBegin(0, 5))
	p.CancelLoad(0)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"0:LOADING", "0:IDLE"}, events)
	assert.Equal(t, StateIdle, p.Status(0))
}

func TestPlayer_PreloadBegin_RejectsBadListID(t *testing.T) {
	p, _ := newTestPlayer(t, nil)
	require.ErrorIs(t, p.PreloadBegin(2, 1), awgerr.InvalidArgument)
}

func TestPlayer_Reset_DrainsBothListsAndPublishesOnlyFinalIdles(t *testing.T) {
	var mu sync.Mutex
	var events []string
	record := func(id int, s ListState) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, fmt.Sprintf("%d:%s", id, s))
	}

	p, fake := newTestPlayer(t, record)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go p.Run(runCtx)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	require.NoError(t, p.Reset(ctx, 5))

	words := fake.Words()
	require.NotEmpty(t, words)
	last := words[len(words)-1]
	op, _, _, _ := hwcmd.DecodeWord(last)
	assert.Equal(t, hwcmd.OpCommit, op, "the last word the HW sees after Reset must be a COMMIT from a zero-gain frame")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"0:IDLE", "1:IDLE"}, events, "Reset must publish exactly the two final Idle transitions, nothing mid-drain")
}

func TestPlayer_Reset_StopsWhateverWasPlaying(t *testing.T) {
	p, fake := newTestPlayer(t, nil)

	require.NoError(t, p.PreloadBegin(0, 1000))
	require.NoError(t, p.PreloadPush(0, []uint32{0xFFFFFFFF}))
	require.NoError(t, p.PreloadEnd(0))

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go p.Run(runCtx)

	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, p.Reset(ctx, 3))

	words := fake.Words()
	last := words[len(words)-1]
	op, _, _, payload := hwcmd.DecodeWord(last)
	assert.Equal(t, hwcmd.OpCommit, op)
	assert.Zero(t, payload)
}
