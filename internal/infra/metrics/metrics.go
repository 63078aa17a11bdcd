// Package metrics exposes hall activity as Prometheus metrics.
package metrics

import (
	"net"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/osa030/saloon/internal/app/notification"
)

// Recorder turns table events into metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	sessionsStarted *prometheus.CounterVec
	sessionsStopped *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	chargeCollected *prometheus.CounterVec
	tableEvents     *prometheus.CounterVec
	openSessions    prometheus.Gauge
}

// NewRecorder creates a recorder with all metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saloon_sessions_started_total",
				Help: "Total sessions started",
			},
			[]string{"kind"},
		),
		sessionsStopped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saloon_sessions_stopped_total",
				Help: "Total sessions stopped and billed",
			},
			[]string{"kind"},
		),
		sessionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "saloon_session_duration_seconds",
				Help:    "Billed session duration in seconds",
				Buckets: []float64{300, 900, 1800, 3600, 7200, 14400},
			},
			[]string{"kind"},
		),
		chargeCollected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saloon_charge_collected_total",
				Help: "Total amount collected from paying players",
			},
			[]string{"kind"},
		),
		tableEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saloon_table_events_total",
				Help: "Table lifecycle events",
			},
			[]string{"type"},
		),
		openSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "saloon_open_sessions",
				Help: "Number of running or paused sessions",
			},
		),
	}

	r.registry.MustRegister(
		r.sessionsStarted,
		r.sessionsStopped,
		r.sessionDuration,
		r.chargeCollected,
		r.tableEvents,
		r.openSessions,
	)
	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Send records one event. It implements notification.Sink.
func (r *Recorder) Send(e notification.Event) error {
	kind := e.Table.Kind.String()
	r.tableEvents.WithLabelValues(e.Type.String()).Inc()

	switch e.Type {
	case notification.EventSessionStarted:
		r.sessionsStarted.WithLabelValues(kind).Inc()
	case notification.EventSessionStopped:
		r.sessionsStopped.WithLabelValues(kind).Inc()
		if e.Session != nil {
			r.sessionDuration.WithLabelValues(kind).Observe(float64(e.Session.DurationSeconds))
			r.chargeCollected.WithLabelValues(kind).Add(e.Session.TotalCollected().InexactFloat64())
		}
	}
	r.openSessions.Set(float64(e.OpenAfter))
	return nil
}

// Handler serves the recorder's metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Server is the metrics HTTP server
type Server struct {
	server *http.Server
	logger zerolog.Logger
	ln     net.Listener
}

// NewServer creates a new metrics server
func NewServer(addr, path string, rec *Recorder, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle(path, rec.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.server.Addr)
	}
	s.ln = ln
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting metrics server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.server.Addr
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
