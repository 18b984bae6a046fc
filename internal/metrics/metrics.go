package metrics

import (
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tick metrics
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowtrack_ticks_total",
			Help: "Total session engine ticks by outcome",
		},
		[]string{"outcome"}, // idle, counted, unmatched, unavailable, stale, ended
	)

	FocusSampleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowtrack_focus_sample_duration_seconds",
			Help:    "Time taken to sample the focused application",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// Tracked time
	TrackedSeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowtrack_tracked_seconds_total",
			Help: "Total seconds attributed to spaces",
		},
		[]string{"space"},
	)

	// Persistence metrics
	FlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowtrack_flushes_total",
			Help: "Pending buffer flushes by result",
		},
		[]string{"result"},
	)

	PendingIncrements = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowtrack_pending_increments",
			Help: "Number of (space, app, date) increments waiting to be flushed",
		},
	)

	EntriesPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowtrack_entries_pruned_total",
			Help: "Entries removed by retention pruning",
		},
	)

	// Session state
	SessionActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowtrack_session_active",
			Help: "1 while a space is being tracked",
		},
	)

	SpaceTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowtrack_space_transitions_total",
			Help: "Session begin/end transitions",
		},
		[]string{"transition"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowtrack_api_requests_total",
			Help: "Total API requests processed",
		},
		[]string{"route", "method", "status"},
	)

	WindowCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowtrack_window_cache_hits_total",
			Help: "Installed application cache hits",
		},
	)

	WindowCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowtrack_window_cache_misses_total",
			Help: "Installed application cache misses",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		TicksTotal,
		FocusSampleDuration,
		TrackedSeconds,
		FlushesTotal,
		PendingIncrements,
		EntriesPruned,
		SessionActive,
		SpaceTransitions,
		APIRequestsTotal,
		WindowCacheHits,
		WindowCacheMisses,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
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

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	if s.listener != nil {
		// Use systemd socket-activated listener
		s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
	} else {
		// Bind here so an address in use fails startup
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			return fmt.Errorf("metrics listen on %s: %w", s.server.Addr, err)
		}
		s.listener = ln
	}
	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
