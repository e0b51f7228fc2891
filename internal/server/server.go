// Package server provides the HTTP API for docchat.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/docchat/internal/config"
	"github.com/hyperjump/docchat/internal/session"
	"go.uber.org/zap"
)

// Spool persists uploads so they can be extracted by path.
type Spool interface {
	Save(name string, r io.Reader) (string, error)
	Remove(path string) error
	UsageBytes() (int64, error)
}

// Server is the HTTP server for the docchat API.
type Server struct {
	sessions *session.Store
	spool    Spool
	config   *config.ServerConfig
	model    string
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. model is reported by the status endpoint.
func NewServer(
	sessions *session.Store,
	spool Spool,
	cfg *config.ServerConfig,
	model string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		sessions: sessions,
		spool:    spool,
		config:   cfg,
		model:    model,
		logger:   logger,
	}
}

// Handler returns the router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/documents", s.handleUploadDocument)
			r.Post("/crawl", s.handleCrawl)
			r.Post("/messages", s.handlePostMessage)
			r.Get("/messages", s.handleListMessages)
		})
	})
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
