// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/devdash/internal/api"
	"github.com/starford/devdash/internal/events"
	"github.com/starford/devdash/internal/inbox"
	"github.com/starford/devdash/internal/jobs"
	"github.com/starford/devdash/internal/kv"
	"github.com/starford/devdash/internal/mcpserver"
	"github.com/starford/devdash/internal/models"
	"github.com/starford/devdash/internal/notify"
	"github.com/starford/devdash/internal/profile"
	"github.com/starford/devdash/internal/sse"
	"github.com/starford/devdash/internal/storage"
)

// services is the wired object graph shared by the HTTP and MCP entry points.
type services struct {
	logger   *slog.Logger
	store    kv.Store
	hub      *events.Hub
	profiles *profile.Store
	postings storage.Provider
	catalog  *jobs.Catalog
	inbox    *inbox.Service
	engine   *notify.Engine
}

func (s *services) Close() {
	s.engine.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close store failed", slog.String("error", err.Error()))
	}
}

func setup(opts ...Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func build(ctx context.Context, app *application) (*services, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("store_path", cfg.Store.Path),
		slog.String("jobs_path", cfg.Jobs.Path),
		slog.Bool("remote_in_process", cfg.Remote.InProcess()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := kv.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	hub, err := events.NewHub(logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init hub: %w", err)
	}

	postings, err := storage.NewFS(cfg.Jobs.Path)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init jobs storage: %w", err)
	}
	catalog := jobs.NewCatalog(postings, logger)
	if _, err := catalog.Load(); err != nil {
		logger.Warn("initial catalog load failed", slog.String("error", err.Error()))
	}

	s := &services{
		logger:   logger,
		store:    store,
		hub:      hub,
		profiles: profile.NewStore(store, hub.Profile, logger),
		postings: postings,
		catalog:  catalog,
	}

	var remote notify.RemoteAPI
	if cfg.Remote.InProcess() {
		s.inbox = inbox.NewService(store, inbox.OnCreate(func(userID string, n models.Notification) {
			payload := events.NotificationPayload{
				"id":        n.ID,
				"user_id":   userID,
				"title":     n.Title,
				"message":   n.Message,
				"type":      string(n.Type),
				"timestamp": n.Timestamp,
				"link":      n.Link,
			}
			if n.Metadata != nil {
				payload["metadata"] = n.Metadata
			}
			if err := hub.Notification.Publish(payload.Envelope()); err != nil {
				logger.Warn("realtime publish failed", slog.String("error", err.Error()))
			}
		}))
		remote = s.inbox
	} else {
		remote = notify.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.Remote.Timeout)
	}

	s.engine = notify.NewEngine(remote, hub, s.profiles, store,
		notify.WithLogger(logger),
		notify.WithJobs(catalog),
	)
	if err := s.engine.Start(); err != nil {
		store.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	if cfg.Session.UserID != "" {
		if err := s.engine.SetUser(ctx, cfg.Session.UserID); err != nil {
			logger.Warn("initial notification fetch failed",
				slog.String("user_id", cfg.Session.UserID), slog.String("error", err.Error()))
		}
	}
	return s, nil
}

func (s *services) watchJobs(ctx context.Context, root string) error {
	return s.catalog.Watch(ctx, root, func(list []models.Job) {
		s.logger.Info("jobs catalog changed", slog.Int("jobs", len(list)))
		s.engine.ScanJobMatches()
	})
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := setup(opts...)
	if err != nil {
		return err
	}
	cfg := app.config

	svc, err := build(ctx, app)
	if err != nil {
		return err
	}
	defer svc.Close()
	logger := svc.logger

	// SSE broker fed by every bus.
	broker := sse.NewBroker(250 * time.Millisecond)
	defer broker.Close()
	stopBridge := sse.Bridge(svc.hub, svc.engine, broker)
	defer stopBridge()

	apiRouter := api.NewRouter(api.Deps{
		Hub:      svc.hub,
		Engine:   svc.engine,
		Profiles: svc.profiles,
		Jobs:     svc.catalog,
		Inbox:    svc.inbox,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Rescan job matches when postings change.
	if cfg.Jobs.Watch {
		g.Go(func() error {
			if err := svc.watchJobs(gCtx, cfg.Jobs.Path); err != nil {
				logger.Error("jobs watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher exits with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio until stdin closes.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	cfg := app.config

	svc, err := build(ctx, app)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.Jobs.Watch {
		go func() {
			if err := svc.watchJobs(ctx, cfg.Jobs.Path); err != nil {
				svc.logger.Error("jobs watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	srv := mcpserver.New(mcpserver.Deps{
		Hub:      svc.hub,
		Engine:   svc.engine,
		Profiles: svc.profiles,
		Catalog:  svc.catalog,
		Postings: svc.postings,
	})
	svc.logger.Info("MCP server listening on stdio")
	return srv.ServeStdio()
}
