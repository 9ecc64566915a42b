package netsrv

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maemo32/awgserver/internal/hwcmd"
	"github.com/maemo32/awgserver/wire"
)

func TestDirectServer_ForwardsWordsToHW(t *testing.T) {
	fake := hwcmd.NewFakeBackend()
	dev := hwcmd.NewDevice(fake)
	require.NoError(t, dev.Init())

	ln := listenLoopback(t)
	defer ln.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := NewDirectServer(dev, DirectServerConfig{}, nil)
	go srv.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wire.WriteDirectBlock(conn, []uint32{1, 2, 3}))

	require.Eventually(t, func() bool {
		return len(fake.Words()) == 3
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, []uint32{1, 2, 3}, fake.Words())
}

func TestDirectServer_RejectsConnectionsBeyondCap(t *testing.T) {
	fake := hwcmd.NewFakeBackend()
	dev := hwcmd.NewDevice(fake)
	require.NoError(t, dev.Init())

	ln := listenLoopback(t)
	defer ln.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := NewDirectServer(dev, DirectServerConfig{MaxConns: 1}, nil)
	go srv.Serve(ctx, ln)

	held, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer held.Close()

	// Give the server a moment to accept and occupy the one slot.
	time.Sleep(20 * time.Millisecond)

	rejected, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer rejected.Close()

	rejected.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = rejected.Read(buf)
	assert.Error(t, err, "a connection beyond the cap must be closed immediately")
}

func TestDirectServer_ConcurrentConnectionsShareHwMutex(t *testing.T) {
	fake := hwcmd.NewFakeBackend()
	dev := hwcmd.NewDevice(fake)
	require.NoError(t, dev.Init())

	ln := listenLoopback(t)
	defer ln.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := NewDirectServer(dev, DirectServerConfig{MaxConns: 4}, nil)
	go srv.Serve(ctx, ln)

	const conns = 4
	const blocksPerConn = 5
	done := make(chan struct{}, conns)
	for c := 0; c < conns; c++ {
		go func(tag uint32) {
			conn, err := net.Dial("tcp", ln.Addr().String())
			if err == nil {
				for i := 0; i < blocksPerConn; i++ {
					wire.WriteDirectBlock(conn, []uint32{tag<<16 | uint32(i), tag<<16 | uint32(i)})
				}
				conn.Close()
			}
			done <- struct{}{}
		}(uint32(c))
	}
	for c := 0; c < conns; c++ {
		<-done
	}

	require.Eventually(t, func() bool {
		return len(fake.Words()) == conns*blocksPerConn*2
	}, 2*time.Second, time.Millisecond)

	words := fake.Words()
	for i := 0; i < len(words); i += 2 {
		assert.Equal(t, words[i], words[i+1], "each block's two words share a tag and must not be split across an interleaved write")
	}
}
