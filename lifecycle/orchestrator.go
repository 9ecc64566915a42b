// Package lifecycle sequences the server's startup and shutdown: bring
// the peripheral up, prime both lists to a known-quiet state, open the
// three TCP services, then run until told to stop and tear back down in
// reverse order.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/maemo32/awgserver/config"
	"github.com/maemo32/awgserver/internal/console"
	"github.com/maemo32/awgserver/internal/discovery"
	"github.com/maemo32/awgserver/internal/hwcmd"
	"github.com/maemo32/awgserver/internal/metrics"
	"github.com/maemo32/awgserver/internal/netsrv"
	"github.com/maemo32/awgserver/internal/rig"
	"github.com/maemo32/awgserver/logging"
	"github.com/maemo32/awgserver/playlist"
)

// Exit codes, returned by Run for the caller to pass to os.Exit.
const (
	ExitOK                 = 0
	ExitHwInitFailed       = 1
	ExitNotifierListenFail = 2
	ExitQueuedListenFail   = 3
	ExitDirectListenFail   = 4
)

// NewBackend builds the hwcmd.Backend named by cfg.Backend. Returns an
// error for an unknown backend name.
func NewBackend(cfg config.Config) (hwcmd.Backend, error) {
	polarity := hwcmd.ActiveHigh
	if cfg.WenActiveLow {
		polarity = hwcmd.ActiveLow
	}

	switch cfg.Backend {
	case "mmap":
		return hwcmd.NewMmapBackend(hwcmd.MmapConfig{
			DevicePath: cfg.MmapDevicePath,
			DataBase:   cfg.MmapDataBase,
			WenBase:    cfg.MmapWenBase,
			Polarity:   polarity,
		}), nil
	case "uio":
		devicePath := cfg.MmapDevicePath
		if cfg.UioDeviceName != "" {
			found, err := discovery.FindUioDevice(cfg.UioDeviceName)
			if err != nil {
				return nil, fmt.Errorf("lifecycle: resolve uio device: %w", err)
			}
			devicePath = found
		}
		return hwcmd.NewMmapBackend(hwcmd.MmapConfig{
			DevicePath: devicePath,
			DataBase:   cfg.MmapDataBase,
			WenBase:    cfg.MmapWenBase,
			Polarity:   polarity,
		}), nil
	case "gpiocdev":
		return hwcmd.NewGpiocdevBackend(hwcmd.GpiocdevConfig{
			Chip:        cfg.GpioChip,
			WenOffset:   cfg.GpioWenOffset,
			DataOffsets: cfg.GpioDataOffsets,
			Polarity:    polarity,
		}), nil
	default:
		return nil, fmt.Errorf("lifecycle: unknown backend %q", cfg.Backend)
	}
}

// Orchestrator owns the device, player, and the three network services,
// and sequences their startup and shutdown.
type Orchestrator struct {
	cfg    config.Config
	logger logging.Logger

	dev    *hwcmd.Device
	player *playlist.Player
	hub    *netsrv.StatusHub
	reg    *metrics.Registry

	announcer *discovery.Announcer

	notifierLn net.Listener
	queuedLn   net.Listener
	directLn   net.Listener
	metricsLn  net.Listener

	wg     sync.WaitGroup
	cancel context.CancelFunc

	stop     chan struct{}
	stopOnce sync.Once
}

// New constructs an Orchestrator around backend, which the caller has
// already selected (normally via NewBackend) but not yet initialised.
func New(cfg config.Config, backend hwcmd.Backend, logger logging.Logger) *Orchestrator {
	dev := hwcmd.NewDevice(backend)
	hub := netsrv.NewStatusHub(logger)
	player := playlist.NewPlayer(dev, cfg.Period(), hub.Publish, logger)

	reg := metrics.NewRegistry()
	player.SetMetrics(reg)

	return &Orchestrator{cfg: cfg, logger: logger, dev: dev, player: player, hub: hub, reg: reg, announcer: discovery.NewAnnouncer(logger), stop: make(chan struct{})}
}

// Run brings the server up, blocks until ctx is cancelled, then tears
// down in reverse order. It returns one of the Exit* codes.
func (o *Orchestrator) Run(ctx context.Context) int {
	if err := o.dev.Init(); err != nil {
		o.logf("startup: hw init failed: %v", err)
		return ExitHwInitFailed
	}
	defer o.dev.Close()

	if closer := o.setupConsoleMirror(); closer != nil {
		defer closer()
	}

	if o.cfg.RigEnabled {
		ctl, err := rig.Open(o.cfg.RigModel, o.cfg.RigDevice, o.cfg.RigBaud)
		if err != nil {
			o.logf("startup: rig control unavailable, continuing without LO control: %v", err)
		} else {
			defer ctl.Close()
			if o.cfg.RigLoFreqHz > 0 {
				if err := ctl.SetFrequency(o.cfg.RigLoFreqHz); err != nil {
					o.logf("startup: rig set_freq: %v", err)
				}
			}
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	defer cancel()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.player.Run(runCtx)
	}()

	if err := o.primeLists(ctx); err != nil {
		o.logf("startup: prime lists failed: %v", err)
	}

	notifierLn, err := net.Listen("tcp", o.cfg.NotifierAddr)
	if err != nil {
		o.logf("startup: notifier listen: %v", err)
		return ExitNotifierListenFail
	}
	o.notifierLn = notifierLn
	o.serveNotifier(runCtx)

	queuedLn, err := net.Listen("tcp", o.cfg.QueuedAddr)
	if err != nil {
		o.logf("startup: queued listen: %v", err)
		return ExitQueuedListenFail
	}
	o.queuedLn = queuedLn
	o.serveQueued(runCtx)

	if o.cfg.EnableMdns {
		if tcpAddr, ok := queuedLn.Addr().(*net.TCPAddr); ok {
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				if err := o.announcer.Announce(runCtx, o.cfg.MdnsInstance, tcpAddr.Port); err != nil && runCtx.Err() == nil {
					o.logf("discovery: mdns announce: %v", err)
				}
			}()
		}
	}

	directLn, err := net.Listen("tcp", o.cfg.DirectAddr)
	if err != nil {
		o.logf("startup: direct listen: %v", err)
		return ExitDirectListenFail
	}
	o.directLn = directLn
	o.serveDirect(runCtx)

	if o.cfg.EnableMetrics {
		metricsLn, err := net.Listen("tcp", o.cfg.MetricsAddr)
		if err != nil {
			o.logf("startup: metrics listen: %v (continuing without metrics)", err)
		} else {
			o.metricsLn = metricsLn
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				if err := o.reg.Serve(runCtx, metricsLn); err != nil {
					o.logf("metrics: serve: %v", err)
				}
			}()
		}
	}

	o.logf("listening: notifier=%s queued=%s direct=%s", o.cfg.NotifierAddr, o.cfg.QueuedAddr, o.cfg.DirectAddr)

	select {
	case <-ctx.Done():
	case <-o.stop:
	}
	o.shutdown()
	return ExitOK
}

// triggerStop unblocks Run's wait, once, regardless of whether it was
// asked for by the caller's context or by an in-process shutdown
// request (the queued protocol's poweroff opcode).
func (o *Orchestrator) triggerStop() {
	o.stopOnce.Do(func() { close(o.stop) })
}

// handlePoweroffOpcode runs the configured host shutdown command (after
// the queued server has already flushed both lists via Reset) and then
// unblocks Run so the normal shutdown sequence - closing listeners,
// draining, final ZeroOutput - still runs before the process exits.
func (o *Orchestrator) handlePoweroffOpcode() {
	if o.cfg.PoweroffCommand != "" {
		if err := exec.Command(o.cfg.PoweroffCommand).Run(); err != nil {
			o.logf("shutdown: poweroff command %q: %v", o.cfg.PoweroffCommand, err)
		}
	}
	o.triggerStop()
}

// setupConsoleMirror installs a diagnostic mirror on the device per
// cfg.ConsoleMirror ("" disables it, "pty" opens a pseudo-terminal pair,
// anything else is treated as a serial device path) and returns a closer,
// or nil if no mirror was configured.
func (o *Orchestrator) setupConsoleMirror() func() {
	switch o.cfg.ConsoleMirror {
	case "":
		return nil
	case "pty":
		m, err := console.OpenPtyMirror()
		if err != nil {
			o.logf("startup: console pty mirror: %v", err)
			return nil
		}
		o.logf("console: mirroring HW words on %s", m.SlavePath())
		o.dev.SetMirror(m)
		return func() { m.Close() }
	default:
		m, err := console.OpenSerialMirror(o.cfg.ConsoleMirror, 0)
		if err != nil {
			o.logf("startup: console serial mirror: %v", err)
			return nil
		}
		o.logf("console: mirroring HW words on %s", o.cfg.ConsoleMirror)
		o.dev.SetMirror(m)
		return func() { m.Close() }
	}
}

// primeLists loads both lists with a single zero-gain commit frame and
// lets them play down to Idle, so the peripheral is in the same quiet
// state a completed Reset would leave it in before any client connects.
func (o *Orchestrator) primeLists(ctx context.Context) error {
	primeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.player.Reset(primeCtx, 1)
}

func (o *Orchestrator) serveNotifier(ctx context.Context) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.hub.Serve(ctx, o.notifierLn); err != nil {
			o.logf("notifier: serve: %v", err)
		}
	}()
}

func (o *Orchestrator) serveQueued(ctx context.Context) {
	cfg := netsrv.QueuedServerConfig{
		FlushFrames:   o.cfg.FlushFrames,
		AllowShutdown: o.cfg.EnablePoweroffOpcode,
		OnShutdown:    o.handlePoweroffOpcode,
	}
	if o.cfg.QueuedReadTimeoutMs > 0 {
		cfg.ReadTimeout = time.Duration(o.cfg.QueuedReadTimeoutMs) * time.Millisecond
	}
	srv := netsrv.NewQueuedServer(o.player, cfg, o.logger)
	srv.SetMetrics(o.reg)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := srv.Serve(ctx, o.queuedLn); err != nil {
			o.logf("queued: serve: %v", err)
		}
	}()
}

func (o *Orchestrator) serveDirect(ctx context.Context) {
	cfg := netsrv.DirectServerConfig{MaxConns: o.cfg.DirectMaxConns}
	if o.cfg.DirectReadTimeoutMs > 0 {
		cfg.ReadTimeout = time.Duration(o.cfg.DirectReadTimeoutMs) * time.Millisecond
	}
	srv := netsrv.NewDirectServer(o.dev, cfg, o.logger)
	srv.SetMetrics(o.reg)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := srv.Serve(ctx, o.directLn); err != nil {
			o.logf("direct: serve: %v", err)
		}
	}()
}

// shutdown closes the listeners, flushes both lists to silence while the
// player is still running, then cancels the run context, waits for the
// accept loops and player to return, and drives final zero output.
func (o *Orchestrator) shutdown() {
	o.logf("shutting down")

	for _, ln := range []net.Listener{o.notifierLn, o.queuedLn, o.directLn, o.metricsLn} {
		if ln != nil {
			ln.Close()
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := o.player.Reset(drainCtx, o.cfg.FlushFrames); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		o.logf("shutdown: flush: %v", err)
	}
	cancel()

	o.cancel()
	o.wg.Wait()

	if err := o.dev.ZeroOutput(); err != nil {
		o.logf("shutdown: zero_output: %v", err)
	}
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Infof(format, args...)
	}
}
