// Package ui serves the workbench HTTP API.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/pith/internal/ai"
	"github.com/leapstack-labs/pith/internal/app"
	"github.com/leapstack-labs/pith/internal/ingest"
	"github.com/leapstack-labs/pith/internal/ui/notifier"
	"github.com/leapstack-labs/pith/internal/ui/router"
	"golang.org/x/sync/errgroup"
)

// Server is the workbench HTTP server.
type Server struct {
	app        *app.App
	host       string
	port       int
	watchDir   string
	watchDelay time.Duration
	logger     *slog.Logger
	notifier   *notifier.Notifier
}

// Config holds configuration for the server.
type Config struct {
	App  *app.App
	Host string
	Port int
	// WatchDir, when set, is ingested from as files land in it.
	WatchDir   string
	WatchDelay time.Duration
	Logger     *slog.Logger
}

// NewServer creates a server and subscribes its notifier to model status
// changes.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		app:        cfg.App,
		host:       cfg.Host,
		port:       cfg.Port,
		watchDir:   cfg.WatchDir,
		watchDelay: cfg.WatchDelay,
		logger:     logger,
		notifier:   notifier.New(),
	}
	cfg.App.AI.OnStatus(func(st ai.Status) {
		s.notifier.Broadcast(notifier.Event{Kind: notifier.ModelChanged, Subject: string(st.State)})
	})
	return s
}

// Handler builds the routed handler.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	if err := router.SetupRoutes(r, s.app, s.notifier); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, fmt.Sprint(s.port))
	s.logger.Info("starting server", "addr", "http://"+addr)

	handler, err := s.Handler()
	if err != nil {
		return err
	}

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watchDir != "" {
		eg.Go(func() error {
			return s.watch(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Notifier returns the server's event notifier.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// watch ingests files dropped into the watch directory and tells clients.
func (s *Server) watch(ctx context.Context) error {
	w := ingest.NewWatcher(s.app.Ingest, ingest.WatchConfig{
		Dir:   s.watchDir,
		Delay: s.watchDelay,
		OnIngest: func(path string, res *ingest.Result, err error) {
			if err != nil {
				s.logger.Error("watched file failed to ingest", "file", path, "error", err)
				return
			}
			s.notifier.Broadcast(notifier.Event{Kind: notifier.TablesChanged, Subject: res.TableName})
		},
		Logger: s.logger,
	})
	if err := w.Run(ctx); err != nil {
		// The server keeps running without the watcher.
		s.logger.Error("watcher stopped", "dir", s.watchDir, "error", err)
	}
	return nil
}
