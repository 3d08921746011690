// Package app wires the notifyd components together and runs them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/crestbank/notifyd/internal/api"
	"github.com/crestbank/notifyd/internal/catalog"
	"github.com/crestbank/notifyd/internal/config"
	"github.com/crestbank/notifyd/internal/gateway"
	"github.com/crestbank/notifyd/internal/metrics"
	"github.com/crestbank/notifyd/internal/session"
	"github.com/crestbank/notifyd/internal/status"
	"github.com/crestbank/notifyd/internal/store"
)

// App is the main application
type App struct {
	config        *config.Config
	db            *bolt.DB
	store         *store.Store
	catalog       *catalog.Catalog
	snapshots     *status.Cache
	sessions      *session.Manager
	apiServer     *api.Server
	metricsServer *metrics.Server
	logger        *slog.Logger
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	db, err := bolt.Open(cfg.Storage.Path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache %s: %w", cfg.Storage.Path, err)
	}

	st, err := store.New(db, logger.With("component", "store"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create override store: %w", err)
	}

	cat := catalog.Builtin()

	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, m)
	snaps := status.NewCache(gw, m, logger.With("component", "snapshots"))

	sessions := session.NewManager(
		cat, st, gw, snaps, m,
		logger.With("component", "session"),
		cfg.Gateway.CompanyID,
		cfg.Gateway.From,
		cfg.Gateway.Timeout,
	)

	// Templates created through the dashboard live only in their
	// persisted override records; rebuild them before serving.
	if n := sessions.RestoreCreated(); n > 0 {
		logger.Info("restored created templates from local cache", "count", n)
	}

	apiServer := api.NewServer(cat, sessions, snaps, &cfg.Server, m, logger.With("component", "api"))

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(m, cfg.Metrics.ListenAddr, cfg.Metrics.Path, logger.With("component", "metrics"))
	}

	return &App{
		config:        cfg,
		db:            db,
		store:         st,
		catalog:       cat,
		snapshots:     snaps,
		sessions:      sessions,
		apiServer:     apiServer,
		metricsServer: metricsServer,
		logger:        logger,
	}, nil
}

// Run starts all components and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting notifyd",
		"api_addr", a.config.Server.ListenAddr,
		"gateway", a.config.Gateway.BaseURL,
		"storage", a.config.Storage.Path,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}

	a.sessions.Close()

	if err := a.db.Close(); err != nil {
		a.logger.Error("storage close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
