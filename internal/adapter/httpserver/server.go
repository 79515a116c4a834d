// Package httpserver is the IPC surface the desktop UI talks to: a chi
// router exposing the connection lifecycle entry points, saved-connection
// CRUD, and a WebSocket feed of status and query log events.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zequel-labs/zequel/internal/adapter/store"
	"github.com/zequel-labs/zequel/internal/lifecycle"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr        string
	RequestsPerMinute float64
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
}

// Server wraps the HTTP server with chi routing, middleware, and graceful
// shutdown.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	manager    *lifecycle.Manager
	store      *store.Store
	events     *EventHub
	limiter    *ipRateLimiter
	logger     *slog.Logger
}

// New creates a Server wired with the given dependencies.
func New(cfg Config, manager *lifecycle.Manager, st *store.Store, events *EventHub, logger *slog.Logger) *Server {
	s := &Server{
		manager: manager,
		store:   st,
		events:  events,
		limiter: newIPRateLimiter(cfg.RequestsPerMinute),
		logger:  logger,
	}

	s.setupRoutes()

	readHeaderTimeout := cfg.ReadHeaderTimeout
	if readHeaderTimeout == 0 {
		readHeaderTimeout = 10 * time.Second
	}
	idleTimeout := cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 120 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server and blocks until it stops. Returns
// nil if the server was shut down gracefully via Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs each request with method, path, and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
