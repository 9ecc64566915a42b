package netsrv

import (
	"context"
	"net"
	"time"

	"github.com/rs/xid"

	"github.com/maemo32/awgserver/internal/hwcmd"
	"github.com/maemo32/awgserver/internal/metrics"
	"github.com/maemo32/awgserver/logging"
	"github.com/maemo32/awgserver/wire"
)

// DirectServerConfig configures the direct passthrough server.
type DirectServerConfig struct {
	ReadTimeout time.Duration // per-read timeout; default 100ms
	MaxConns    int           // concurrent connection cap; default 8
}

func (c DirectServerConfig) withDefaults() DirectServerConfig {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 100 * time.Millisecond
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 8
	}
	return c
}

// DirectServer accepts up to cfg.MaxConns concurrent connections, each a
// stateless stream of count-prefixed word blocks forwarded straight to
// the HW device. It shares dev with the player, and dev's own mutex is
// what makes that safe.
type DirectServer struct {
	dev    *hwcmd.Device
	cfg    DirectServerConfig
	logger logging.Logger
	slots  chan struct{}
	rec    metrics.Recorder
}

func NewDirectServer(dev *hwcmd.Device, cfg DirectServerConfig, logger logging.Logger) *DirectServer {
	cfg = cfg.withDefaults()
	return &DirectServer{
		dev:    dev,
		cfg:    cfg,
		logger: logger,
		slots:  make(chan struct{}, cfg.MaxConns),
		rec:    metrics.NoOp{},
	}
}

// SetMetrics installs rec as this server's metrics sink.
func (s *DirectServer) SetMetrics(rec metrics.Recorder) {
	if rec == nil {
		rec = metrics.NoOp{}
	}
	s.rec = rec
}

func (s *DirectServer) Serve(ctx context.Context, ln net.Listener) error {
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

		select {
		case s.slots <- struct{}{}:
			go s.handle(ctx, conn)
		default:
			conn.Close()
			if s.logger != nil {
				s.logger.Warnf("direct: connection cap (%d) reached, rejecting", s.cfg.MaxConns)
			}
		}
	}
}

func (s *DirectServer) handle(ctx context.Context, conn net.Conn) {
	cid := xid.New().String()
	s.rec.ConnectionOpened("direct")
	if s.logger != nil {
		s.logger.Infof("direct[%s]: connection from %s", cid, conn.RemoteAddr())
	}
	defer func() {
		conn.Close()
		<-s.slots
		s.rec.ConnectionClosed("direct")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		words, err := wire.ReadDirectBlock(conn)
		if err != nil {
			return
		}
		if err := s.dev.SendWords(words); err != nil {
			if s.logger != nil {
				s.logger.Warnf("direct[%s]: send_words: %v", cid, err)
			}
			return
		}
	}
}
