// Package netsrv implements the three TCP-facing services the server
// exposes: the queued preload protocol, the status notifier, and the
// thin direct passthrough. Each Serve method owns a deadline-driven
// accept loop so it can be stopped via context cancellation without
// relying on a blocking accept plus a signal to unblock it.
package netsrv

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/maemo32/awgserver/logging"
	"github.com/maemo32/awgserver/playlist"
	"github.com/maemo32/awgserver/wire"
)

// acceptPollInterval bounds how long Serve blocks in Accept before
// re-checking ctx. It applies only to *net.TCPListener; any other listener
// blocks in Accept until a connection arrives or the listener is closed.
const acceptPollInterval = 250 * time.Millisecond

const notifierWriteTimeout = 2 * time.Second

// StatusHub is the status notifier: it tracks each list's current state
// and pushes state-change lines to at most one subscriber. It is safe to
// pass StatusHub.Publish directly as a playlist.PublishFunc.
//
// StatusHub's mutex is distinct from playlist.Player's — see Publish's
// contract below on lock ordering.
type StatusHub struct {
	mu          sync.Mutex
	current     [2]playlist.ListState
	subConn     net.Conn
	subLastSent [2]string
	logger      logging.Logger
}

func NewStatusHub(logger logging.Logger) *StatusHub {
	return &StatusHub{logger: logger}
}

// Publish implements playlist.PublishFunc. It must never be called with
// any other lock held by the caller; Player already guarantees this by
// releasing its own lock before invoking the publish callback.
func (h *StatusHub) Publish(listID int, state playlist.ListState) {
	s := state.String()

	h.mu.Lock()
	h.current[listID] = state
	conn := h.subConn
	duplicate := conn != nil && h.subLastSent[listID] == s
	h.mu.Unlock()

	if conn == nil || duplicate {
		return
	}
	h.sendLine(conn, listID, s)
}

// HandleSubscriber installs conn as the sole subscriber, closing whatever
// connection previously held that role, and immediately sends both
// lists' current state as required on connect.
func (h *StatusHub) HandleSubscriber(conn net.Conn) {
	h.mu.Lock()
	old := h.subConn
	h.subConn = conn
	h.subLastSent = [2]string{"", ""}
	snapshot := h.current
	h.mu.Unlock()

	if old != nil && old != conn {
		old.Close()
	}

	for id := 0; id < 2; id++ {
		h.sendLine(conn, id, snapshot[id].String())
	}
}

func (h *StatusHub) sendLine(conn net.Conn, listID int, state string) {
	line := wire.FormatStatusLine(listID, state)
	conn.SetWriteDeadline(time.Now().Add(notifierWriteTimeout))

	if _, err := conn.Write([]byte(line)); err != nil {
		h.mu.Lock()
		if h.subConn == conn {
			h.subConn = nil
		}
		h.mu.Unlock()
		conn.Close()
		if h.logger != nil {
			h.logger.Warnf("notifier: write to subscriber failed, dropping: %v", err)
		}
		return
	}

	h.mu.Lock()
	if h.subConn == conn {
		h.subLastSent[listID] = state
	}
	h.mu.Unlock()
}

// Serve accepts subscriber connections on ln until ctx is cancelled.
func (h *StatusHub) Serve(ctx context.Context, ln net.Listener) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if tl, ok := ln.(*net.TCPListener); ok {
			tl.SetDeadline(time.Now().Add(acceptPollInterval))
		}

		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("netsrv: notifier accept: %w", err)
		}

		h.HandleSubscriber(conn)
	}
}
