package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ternarybob/tasker/internal/app"
	"github.com/ternarybob/tasker/internal/common"
)

// Server is the HTTP front of an App: routing, middleware and listener lifecycle
type Server struct {
	app     *app.App
	router  *http.ServeMux
	server  *http.Server
	limiter *ipRateLimiter

	mu       sync.Mutex
	listener net.Listener
}

func New(application *app.App) *Server {
	cfg := application.Config
	s := &Server{app: application}

	if cfg.RateLimit.Enabled {
		s.limiter = newIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.withMiddleware(s.router),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       common.ParseDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout:      common.ParseDuration(cfg.Server.WriteTimeout, 15*time.Second),
		IdleTimeout:       common.ParseDuration(cfg.Server.IdleTimeout, 60*time.Second),
	}

	// Hijacked WebSocket connections are not tracked by http.Server.Shutdown
	if application.WSHandler != nil {
		s.server.RegisterOnShutdown(func() { _ = application.WSHandler.Close() })
	}

	return s
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr is the bound listener address once Start is running, else the configured one
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Start binds the configured address and serves until Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.app.Logger.Info().
		Str("address", ln.Addr().String()).
		Str("health", fmt.Sprintf("http://%s/api/health", ln.Addr().String())).
		Msg("HTTP server listening")

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}
