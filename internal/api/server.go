// Package api is the JSON API the notifications dashboard consumes.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/crestbank/notifyd/internal/catalog"
	"github.com/crestbank/notifyd/internal/config"
	"github.com/crestbank/notifyd/internal/metrics"
	"github.com/crestbank/notifyd/internal/session"
	"github.com/crestbank/notifyd/internal/status"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	catalog    *catalog.Catalog
	sessions   *session.Manager
	snapshots  *status.Cache
	config     *config.ServerConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics
	startTime  time.Time
}

// NewServer creates a new API server
func NewServer(cat *catalog.Catalog, sessions *session.Manager, snaps *status.Cache, cfg *config.ServerConfig, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		catalog:   cat,
		sessions:  sessions,
		snapshots: snaps,
		config:    cfg,
		logger:    logger,
		metrics:   m,
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/groups", s.handleListGroups)
		r.Post("/groups", s.handleCreateGroup)
		r.Get("/groups/{groupID}/templates", s.handleListTemplates)

		r.Post("/templates", s.handleCreateTemplate)
		r.Get("/templates/{id}", s.handleGetTemplate)
		r.Post("/templates/{id}/content", s.handleSaveContent)
		r.Post("/templates/{id}/activate", s.handleActivate)
		r.Post("/templates/{id}/preview", s.handlePreview)
	})
}

// Handler returns the router, for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
