// Package app wires the engine, state store and every service built on them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/pith/internal/ai"
	"github.com/leapstack-labs/pith/internal/chart"
	"github.com/leapstack-labs/pith/internal/engine"
	"github.com/leapstack-labs/pith/internal/export"
	"github.com/leapstack-labs/pith/internal/importer"
	"github.com/leapstack-labs/pith/internal/ingest"
	"github.com/leapstack-labs/pith/internal/insight"
	"github.com/leapstack-labs/pith/internal/prefs"
	"github.com/leapstack-labs/pith/internal/query"
	"github.com/leapstack-labs/pith/internal/schema"
	"github.com/leapstack-labs/pith/internal/state"
	"github.com/leapstack-labs/pith/internal/visual"
)

// Options configures an App.
type Options struct {
	Engine       engine.Settings
	StatePath    string
	QueryTimeout time.Duration

	AI          ai.OpenAIConfig
	Temperature float32
	MaxTokens   int

	Logger *slog.Logger

	// EngineOptions are passed to the connection manager. Tests use them to
	// swap the opener.
	EngineOptions []engine.Option
	// Runtime replaces the OpenAI-compatible model runtime.
	Runtime ai.Runtime
}

// App holds one instance of every service.
type App struct {
	Engine  *engine.Manager
	State   *state.SQLiteStore
	Prefs   *prefs.Store
	Queries *query.Normalizer
	Schema  *schema.Introspector
	Ingest  *ingest.Service
	Charts  *chart.Planner
	Visual  *visual.Connector
	AI      *ai.Manager
	Insight *insight.Session
	Export  *export.Exporter
	Import  *importer.Importer

	logger *slog.Logger
}

// New opens the state store and builds the services. The engine itself
// opens lazily on first use.
func New(ctx context.Context, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	statePath := opts.StatePath
	if statePath == "" {
		statePath = ":memory:"
	}
	if statePath != ":memory:" {
		if dir := filepath.Dir(statePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}
	store, err := state.OpenAndMigrate(statePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	engOpts := append([]engine.Option{engine.WithLogger(logger)}, opts.EngineOptions...)
	eng := engine.NewManager(opts.Engine, engOpts...)

	normalizer := query.New(query.Config{Engine: eng, Timeout: opts.QueryTimeout, Logger: logger})
	introspector := schema.New(normalizer, logger)
	pref := prefs.New(store, logger)

	runtime := opts.Runtime
	if runtime == nil {
		aiCfg := opts.AI
		if aiCfg.Logger == nil {
			aiCfg.Logger = logger
		}
		runtime = ai.NewOpenAIRuntime(aiCfg)
	}
	models := ai.NewManager(ctx, ai.Config{
		Runtime:     runtime,
		Prefs:       pref,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Logger:      logger,
	})

	return &App{
		Engine:  eng,
		State:   store,
		Prefs:   pref,
		Queries: normalizer,
		Schema:  introspector,
		Ingest:  ingest.New(ingest.Config{Engine: eng, Normalizer: normalizer, Ledger: store, Logger: logger}),
		Charts:  chart.NewPlanner(normalizer, logger),
		Visual:  visual.NewConnector(normalizer, logger),
		AI:      models,
		Insight: insight.NewSession(insight.Config{Model: models, Runner: normalizer, Schema: introspector, Logger: logger}),
		Export:  export.New(normalizer, introspector, logger),
		Import:  importer.New(eng, logger),
		logger:  logger,
	}, nil
}

// Logger returns the logger every service shares.
func (a *App) Logger() *slog.Logger { return a.logger }

// Close releases the engine and the state store.
func (a *App) Close() error {
	return errors.Join(a.Engine.Close(), a.State.Close())
}
