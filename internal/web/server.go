// Package web wires the HTTP server, routes and middleware.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"faceid/internal/config"
	"faceid/internal/database"
	"faceid/internal/files"
	"faceid/internal/people"
	"faceid/internal/recognition"
	"faceid/internal/web/middleware"
)

// Dependencies carries everything the server needs. All wiring happens
// in the caller; the server holds no global state.
type Dependencies struct {
	People     *people.Service
	Identifier *recognition.Identifier
	Files      *files.Store
	Users      database.UserStore
	Stats      database.StatsStore
	Sessions   *middleware.SessionManager
	Log        *zap.SugaredLogger
}

// Server is the HTTP server for the JSON API.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	sessions   *middleware.SessionManager
	log        *zap.SugaredLogger
}

// NewServer creates a web server listening on the configured address.
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:   r,
		sessions: deps.Sessions,
		log:      deps.Log,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))
	r.Use(middleware.CORS())

	s.setupRoutes(cfg, deps)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // uploads and identification can be slow
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.log.Infow("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infow("shutting down web server")

	if s.sessions != nil {
		s.sessions.Stop()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
