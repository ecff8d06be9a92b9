// Package metrics exposes practice loop counters over a Prometheus endpoint.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rbright/kamay/internal/fsm"
	"github.com/rbright/kamay/internal/practice"
	"github.com/rbright/kamay/internal/recognize"
)

var phases = []fsm.State{
	fsm.StateIdle,
	fsm.StateStarting,
	fsm.StatePracticing,
	fsm.StateDeviceError,
	fsm.StateComplete,
	fsm.StateStopped,
}

// Metrics holds the collectors for one process. It implements practice.Observer.
type Metrics struct {
	registry *prometheus.Registry

	ticks    *prometheus.CounterVec
	empty    *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	requests *prometheus.HistogramVec
	phase    *prometheus.GaugeVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kamay_poll_ticks_total",
			Help: "Poll ticks executed",
		}, []string{"mode"}),
		empty: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kamay_empty_captures_total",
			Help: "Ticks skipped because the capture was empty or silent",
		}, []string{"mode"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kamay_recognition_outcomes_total",
			Help: "Recognizer responses by session outcome",
		}, []string{"mode", "outcome"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kamay_recognition_request_seconds",
			Help:    "Recognizer round-trip latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		}, []string{"mode", "result"}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kamay_session_phase",
			Help: "Current practice session phase (1 for the active phase)",
		}, []string{"phase"}),
	}
	m.registry.MustRegister(m.ticks, m.empty, m.outcomes, m.requests, m.phase)
	m.Phase(fsm.StateIdle)
	return m
}

func (m *Metrics) Tick(mode practice.Mode) {
	m.ticks.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) EmptyCapture(mode practice.Mode) {
	m.empty.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) Outcome(mode practice.Mode, outcome practice.Outcome) {
	m.outcomes.WithLabelValues(string(mode), string(outcome)).Inc()
}

// Phase marks state as the only active phase.
func (m *Metrics) Phase(state fsm.State) {
	for _, p := range phases {
		v := 0.0
		if p == state {
			v = 1
		}
		m.phase.WithLabelValues(string(p)).Set(v)
	}
}

// Instrument wraps r so every call records its latency, labelled "ok" or by
// recognition error kind.
func (m *Metrics) Instrument(mode practice.Mode, r recognize.Recognizer) recognize.Recognizer {
	return recognize.RecognizerFunc(func(ctx context.Context, payload recognize.Payload, route recognize.Route) (recognize.Result, error) {
		start := time.Now()
		res, err := r.Recognize(ctx, payload, route)
		m.requests.WithLabelValues(string(mode), resultLabel(err)).Observe(time.Since(start).Seconds())
		return res, err
	})
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := recognize.KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "error"
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server serves /metrics on one listener until ctx ends.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// Listen binds addr without serving yet. Use ":0" in tests.
func (m *Metrics) Listen(addr string, logger *slog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:     ln,
		logger: logger,
	}, nil
}

// Addr is the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve blocks until ctx is cancelled, then shuts the listener down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil && s.logger != nil {
			s.logger.Warn("metrics shutdown", "error", err)
		}
		return nil
	}
}
