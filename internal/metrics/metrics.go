// Package metrics exposes the server's counters and gauges over
// prometheus/client_golang, the way runZeroInc's tcpinfo exporter wires
// its own collectors onto a promhttp.Handler.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface the player and network services depend
// on, narrowed to an interface so tests can substitute a no-op.
type Recorder interface {
	FrameEmitted(listID int)
	ListState(listID int, state int)
	TickJitter(d time.Duration)
	ConnectionOpened(service string)
	ConnectionClosed(service string)
}

// Registry is the default Recorder, registering its collectors on a
// private prometheus.Registry so multiple Registry instances (as in
// tests) never collide on the global default registry.
type Registry struct {
	reg *prometheus.Registry

	framesEmitted *prometheus.CounterVec
	listState     *prometheus.GaugeVec
	tickJitter    prometheus.Histogram
	connsOpen     *prometheus.GaugeVec
}

// NewRegistry builds a Registry with all collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		framesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "awgserver_frames_emitted_total",
			Help: "Frames driven to the peripheral, by list.",
		}, []string{"list"}),
		listState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "awgserver_list_state",
			Help: "Current state of each list: 0=Idle, 1=Loading, 2=Ready.",
		}, []string{"list"}),
		tickJitter: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "awgserver_tick_jitter_seconds",
			Help:    "Deviation of each player tick from its absolute deadline.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		connsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "awgserver_connections_open",
			Help: "Currently open connections, by service.",
		}, []string{"service"}),
	}

	reg.MustRegister(r.framesEmitted, r.listState, r.tickJitter, r.connsOpen)
	return r
}

func (r *Registry) FrameEmitted(listID int) {
	r.framesEmitted.WithLabelValues(listLabel(listID)).Inc()
}

func (r *Registry) ListState(listID int, state int) {
	r.listState.WithLabelValues(listLabel(listID)).Set(float64(state))
}

func (r *Registry) TickJitter(d time.Duration) {
	r.tickJitter.Observe(d.Seconds())
}

func (r *Registry) ConnectionOpened(service string) {
	r.connsOpen.WithLabelValues(service).Inc()
}

func (r *Registry) ConnectionClosed(service string) {
	r.connsOpen.WithLabelValues(service).Dec()
}

func listLabel(listID int) string {
	if listID == 1 {
		return "1"
	}
	return "0"
}

// Serve runs an HTTP server exposing /metrics and /healthz until ctx is
// cancelled.
func (r *Registry) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// NoOp is a Recorder that discards everything, used where metrics are
// disabled or not relevant (tests).
type NoOp struct{}

func (NoOp) FrameEmitted(int)             {}
func (NoOp) ListState(int, int)           {}
func (NoOp) TickJitter(time.Duration)     {}
func (NoOp) ConnectionOpened(string)      {}
func (NoOp) ConnectionClosed(string)      {}
