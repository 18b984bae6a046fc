// Package api serves the tracker over HTTP as JSON.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/flowtrack/internal/service"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	Heartbeat      time.Duration // SSE keep-alive interval
}

// Server is the JSON API server.
type Server struct {
	config   Config
	tracker  *service.Tracker
	server   *http.Server
	router   *mux.Router
	handler  http.Handler
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
	logger   zerolog.Logger

	// cancels request contexts so open event streams end on Stop
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer creates a new API server.
func NewServer(cfg Config, tracker *service.Tracker, logger zerolog.Logger) *Server {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}

	s := &Server{
		config:  cfg,
		tracker: tracker,
		router:  mux.NewRouter(),
		logger:  logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	s.handler = s.router
	if len(cfg.AllowedOrigins) > 0 {
		// Outside the router so preflight requests are answered for every route
		s.handler = CORSMiddleware(cfg.AllowedOrigins)(s.router)
	}

	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	// No WriteTimeout: /api/events streams for as long as the client stays.
	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.handler,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	spaces := newSpaceHandler(s.tracker, s.logger)
	s.router.HandleFunc("/api/spaces", spaces.List).Methods("GET")
	s.router.HandleFunc("/api/spaces", spaces.Create).Methods("POST")
	s.router.HandleFunc("/api/spaces/{id}", spaces.Get).Methods("GET")
	s.router.HandleFunc("/api/spaces/{id}", spaces.Update).Methods("PUT")
	s.router.HandleFunc("/api/spaces/{id}", spaces.Delete).Methods("DELETE")
	s.router.HandleFunc("/api/spaces/{id}/active", spaces.SetActive).Methods("PUT")
	s.router.HandleFunc("/api/spaces/{id}/toggle", spaces.Toggle).Methods("POST")

	tracking := newTrackingHandler(s.tracker, s.logger)
	s.router.HandleFunc("/api/session", tracking.Session).Methods("GET")
	s.router.HandleFunc("/api/session/stop", tracking.StopAll).Methods("POST")
	s.router.HandleFunc("/api/entries", tracking.Entries).Methods("GET")
	s.router.HandleFunc("/api/stats/today", tracking.Today).Methods("GET")
	s.router.HandleFunc("/api/analytics", tracking.Analytics).Methods("GET")
	s.router.HandleFunc("/api/settings", tracking.GetSettings).Methods("GET")
	s.router.HandleFunc("/api/settings", tracking.SaveSettings).Methods("PUT")
	s.router.HandleFunc("/api/apps/installed", tracking.Installed).Methods("GET")
	s.router.HandleFunc("/api/apps/running", tracking.Running).Methods("GET")
	s.router.HandleFunc("/api/apps/focused", tracking.Focused).Methods("GET")

	events := newEventsHandler(s.tracker, s.config.Heartbeat, s.logger)
	s.router.HandleFunc("/api/events", events.Stream).Methods("GET")
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")

	if s.listener != nil {
		s.logger.Debug().Msg("Using systemd socket-activated API listener")
	} else {
		ln, err := net.Listen("tcp", s.config.ListenAddr)
		if err != nil {
			return fmt.Errorf("api listen on %s: %w", s.config.ListenAddr, err)
		}
		s.listener = ln
	}

	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")
	s.cancelBase()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"tracking": s.tracker.SessionInfo().IsTracking,
	})
}
