package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/config"
	"github.com/analog-buddy/iotdash/internal/metrics"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer   *http.Server
	telemetryHub TelemetryPort
	ingestor     IngestPort
	dashboard    DashboardPort
	metrics      *metrics.Metrics
	logger       *zap.Logger
	upgrader     websocket.Upgrader

	serverCfg    config.ServerConfig
	dashboardCfg config.DashboardConfig
	upstreamURL  string

	startTime time.Time
	version   string
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported by health and capabilities.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithMetrics exposes m on /metrics and records viewer counts in it.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a new API server. Any port may be nil; the matching
// endpoints then answer UNAVAILABLE.
func NewServer(cfg *config.Config, telemetryHub TelemetryPort, ingestor IngestPort, dash DashboardPort, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		telemetryHub: telemetryHub,
		ingestor:     ingestor,
		dashboard:    dash,
		logger:       logger.Named("api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		serverCfg:    cfg.Server,
		dashboardCfg: cfg.Dashboard,
		upstreamURL:  cfg.Upstream.URL,
		startTime:    time.Now(),
		version:      "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.serverCfg.ReadTimeout(),
		WriteTimeout: s.serverCfg.WriteTimeout(),
		IdleTimeout:  s.serverCfg.IdleTimeout(),
		ErrorLog:     zap.NewStdLog(s.logger),
	}

	s.logger.Info("http server listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
