//
//
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/radio-control/netctl/internal/auth"
	"github.com/radio-control/netctl/internal/config"
	"github.com/radio-control/netctl/internal/network"
)

// Version is reported by /health.
var Version = "dev"

// Server represents the HTTP API server.
type Server struct {
	httpServer     *http.Server
	network        network.Port
	telemetryHub   TelemetryPort
	metrics        http.Handler
	authMiddleware *auth.Middleware
	logger         *zap.Logger
	clock          clock.Clock
	startTime      time.Time
	config         config.APIConfig
}

// NewServer creates a new API server. telemetryHub and metrics may be nil;
// a nil authMiddleware disables authentication.
func NewServer(nw network.Port, telemetryHub TelemetryPort, metrics http.Handler, authMiddleware *auth.Middleware, cfg config.APIConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if authMiddleware == nil {
		authMiddleware = auth.NewMiddleware()
	}
	clk := clock.New()
	return &Server{
		network:        nw,
		telemetryHub:   telemetryHub,
		metrics:        metrics,
		authMiddleware: authMiddleware,
		logger:         logger.Named("api"),
		clock:          clk,
		startTime:      clk.Now(),
		config:         cfg,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.withCorrelation(mux)
}

// Listen binds the configured address and serves in the background.
func (s *Server) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     zap.NewStdLog(s.logger),
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("HTTP API listening", zap.Stringer("addr", ln.Addr()), zap.Bool("auth", s.authMiddleware.Enabled()))
	return ln.Addr(), nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
