package netsrv

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/maemo32/awgserver/internal/metrics"
	"github.com/maemo32/awgserver/logging"
	"github.com/maemo32/awgserver/playlist"
	"github.com/maemo32/awgserver/wire"
)

// QueuedServerConfig configures the queued preload protocol server.
type QueuedServerConfig struct {
	ReadTimeout time.Duration // per-read timeout; default 5s
	FlushFrames int           // zero-gain frames per list on Reset; default 100
	ResetTimeout time.Duration // overall deadline for a Reset; default 10s

	// AllowShutdown gates the 'X' opcode. When false (the default) it is
	// treated as an unrecognized opcode: the connection is dropped.
	AllowShutdown bool
	// OnShutdown, if set and AllowShutdown is true, is invoked after the
	// pre-shutdown Reset completes.
	OnShutdown func()
}

func (c QueuedServerConfig) withDefaults() QueuedServerConfig {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.FlushFrames <= 0 {
		c.FlushFrames = 100
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 10 * time.Second
	}
	return c
}

// QueuedServer accepts a single active TCP connection at a time and
// dispatches its opcode stream into a *playlist.Player.
type QueuedServer struct {
	player *playlist.Player
	cfg    QueuedServerConfig
	logger logging.Logger
	rec    metrics.Recorder

	mu     sync.Mutex
	active net.Conn
}

func NewQueuedServer(player *playlist.Player, cfg QueuedServerConfig, logger logging.Logger) *QueuedServer {
	return &QueuedServer{player: player, cfg: cfg.withDefaults(), logger: logger, rec: metrics.NoOp{}}
}

// SetMetrics installs rec as this server's metrics sink.
func (s *QueuedServer) SetMetrics(rec metrics.Recorder) {
	if rec == nil {
		rec = metrics.NoOp{}
	}
	s.rec = rec
}

// Serve accepts connections on ln until ctx is cancelled, replacing any
// previously active connection as each new one arrives.
func (s *QueuedServer) Serve(ctx context.Context, ln net.Listener) error {
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
			return err
		}

		s.replace(conn)
		go s.handle(ctx, conn)
	}
}

func (s *QueuedServer) replace(conn net.Conn) {
	s.mu.Lock()
	old := s.active
	s.active = conn
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// handle runs one connection's command loop until it errors, is replaced,
// or ctx is cancelled. Any list this connection left in Loading state is
// rolled back to Idle on exit, per the single-writer connection-replace
// policy.
func (s *QueuedServer) handle(ctx context.Context, conn net.Conn) {
	cid := xid.New().String()
	inProgress := map[uint8]bool{}
	s.rec.ConnectionOpened("queued")
	if s.logger != nil {
		s.logger.Infof("queued[%s]: connection from %s", cid, conn.RemoteAddr())
	}

	defer func() {
		s.mu.Lock()
		if s.active == conn {
			s.active = nil
		}
		s.mu.Unlock()

		conn.Close()
		s.rec.ConnectionClosed("queued")
		for listID := range inProgress {
			s.player.CancelLoad(int(listID))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		cmd, err := wire.ReadCommand(conn)
		if err != nil {
			return
		}

		if !s.dispatch(ctx, cmd, inProgress) {
			if s.logger != nil {
				s.logger.Warnf("queued[%s]: protocol error on op %v, dropping connection", cid, cmd.Op)
			}
			return
		}
	}
}

// dispatch applies one command and reports whether the connection should
// continue (false means a protocol error occurred and the caller must
// drop the connection).
func (s *QueuedServer) dispatch(ctx context.Context, cmd wire.Command, inProgress map[uint8]bool) bool {
	switch cmd.Op {
	case wire.OpPreloadBegin:
		if err := s.player.PreloadBegin(int(cmd.ListID), cmd.TotalFrames); err != nil {
			return false
		}
		inProgress[cmd.ListID] = true

	case wire.OpPreloadPush:
		if err := s.player.PreloadPush(int(cmd.ListID), cmd.Words); err != nil {
			return false
		}
		if s.player.Status(int(cmd.ListID)) != playlist.StateLoading {
			delete(inProgress, cmd.ListID)
		}

	case wire.OpPreloadEnd:
		if err := s.player.PreloadEnd(int(cmd.ListID)); err != nil {
			return false
		}
		delete(inProgress, cmd.ListID)

	case wire.OpReset:
		resetCtx, cancel := context.WithTimeout(ctx, s.cfg.ResetTimeout)
		err := s.player.Reset(resetCtx, s.cfg.FlushFrames)
		cancel()
		if err != nil {
			return false
		}
		for k := range inProgress {
			delete(inProgress, k)
		}

	case wire.OpShutdown:
		if !s.cfg.AllowShutdown {
			// Not exposed in the default build: treated as an
			// unrecognized opcode, connection dropped.
			return false
		}
		resetCtx, cancel := context.WithTimeout(ctx, s.cfg.ResetTimeout)
		err := s.player.Reset(resetCtx, s.cfg.FlushFrames)
		cancel()
		if err != nil {
			return false
		}
		if s.cfg.OnShutdown != nil {
			s.cfg.OnShutdown()
		}

	default:
		return false
	}

	return true
}
