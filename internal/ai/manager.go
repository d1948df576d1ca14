// Package ai manages the local language model: which model is selected,
// loading and unloading it, streaming generations and purging cached
// weights.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/leapstack-labs/pith/internal/metrics"
	"github.com/leapstack-labs/pith/internal/prefs"
)

// PrefStore persists the selected model. *prefs.Store implements it.
type PrefStore interface {
	String(ctx context.Context, key, def string) string
	Set(ctx context.Context, key string, v any) error
}

// Config configures a Manager.
type Config struct {
	Runtime     Runtime
	Prefs       PrefStore
	Temperature float32
	MaxTokens   int
	Logger      *slog.Logger
}

// PurgeResult reports the distinct catalog models whose weights were removed.
type PurgeResult struct {
	Count  int      `json:"count"`
	Models []string `json:"models"`
}

// Manager owns at most one loaded engine.
type Manager struct {
	runtime     Runtime
	prefs       PrefStore
	temperature float32
	maxTokens   int
	logger      *slog.Logger

	// loadMu serializes Init, Generate and Purge, so an engine runs one
	// generation at a time and is never unloaded mid-stream.
	loadMu sync.Mutex

	mu          sync.Mutex
	engine      Engine
	engineModel string
	current     string
	status      Status
	listeners   []func(old, new string)
	watchers    []func(Status)
}

// NewManager creates a Manager. The current model is restored from the
// preference store when it names a catalog model.
func NewManager(ctx context.Context, cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.7
	}
	m := &Manager{
		runtime:     cfg.Runtime,
		prefs:       cfg.Prefs,
		temperature: temp,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
	m.current = m.savedModel(ctx)
	m.status = Status{State: StateIdle, Model: m.current}
	metrics.SetModelState(string(StateIdle), stateNames())
	return m
}

func (m *Manager) savedModel(ctx context.Context) string {
	if m.prefs != nil {
		saved := m.prefs.String(ctx, prefs.KeyLastModel, "")
		if _, ok := Lookup(saved); ok {
			return saved
		}
	}
	return DefaultModel()
}

// OnModelChange registers fn to run whenever SetModel switches models.
func (m *Manager) OnModelChange(fn func(old, new string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// OnStatus registers fn to receive every status change. fn runs with the
// manager locked and must not call back into it.
func (m *Manager) OnStatus(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, fn)
}

// Status returns the current lifecycle status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// CurrentModel returns the selected model id.
func (m *Manager) CurrentModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// LoadedModel returns the id of the loaded model, or "".
func (m *Manager) LoadedModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine == nil {
		return ""
	}
	return m.engineModel
}

// SetModel selects a model and persists the choice. Nothing is loaded or
// unloaded; a ready engine bound to another model drops back to idle.
func (m *Manager) SetModel(ctx context.Context, id string) error {
	if _, ok := Lookup(id); !ok {
		return &UnknownModelError{ID: id}
	}

	m.mu.Lock()
	old := m.current
	m.current = id
	if m.engine != nil && m.engineModel != id && m.status.State == StateReady {
		m.setStatusLocked(Status{State: StateIdle})
	}
	listeners := append([]func(string, string){}, m.listeners...)
	m.mu.Unlock()

	if m.prefs != nil {
		if err := m.prefs.Set(ctx, prefs.KeyLastModel, id); err != nil {
			m.logger.Warn("failed to persist model choice", "model_id", id, "error", err)
		}
	}
	if old != id {
		for _, fn := range listeners {
			fn(old, id)
		}
	}
	return nil
}

// CheckCached reports whether the model's weights are in the local cache.
// Probe failures read as not cached. An empty id checks the current model.
func (m *Manager) CheckCached(ctx context.Context, id string) bool {
	if id == "" {
		id = m.CurrentModel()
	}
	if m.runtime == nil {
		return false
	}
	cache := m.runtime.Cache()
	if cache == nil {
		return false
	}
	ok, err := cache.Has(ctx, id)
	if err != nil {
		m.logger.Debug("cache probe failed", "model_id", id, "error", err)
		return false
	}
	return ok
}

// Init loads modelID, or the current model when empty. A loaded engine for
// the same model is returned as-is and marked ready again, which clears an
// error left by a failed generation. One bound to another model is unloaded
// first. Loads wait for any generation in flight.
func (m *Manager) Init(ctx context.Context, onProgress ProgressFunc, modelID string) (Engine, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	target := modelID
	if target == "" {
		target = m.CurrentModel()
	}

	m.mu.Lock()
	var stale Engine
	staleModel := m.engineModel
	if m.engine != nil && m.engineModel != target {
		stale = m.engine
		m.engine, m.engineModel = nil, ""
	}
	loaded := m.engine
	m.mu.Unlock()

	if stale != nil {
		m.logger.Info("unloading model", "model_id", staleModel)
		if err := stale.Unload(ctx); err != nil {
			m.logger.Warn("failed to unload model", "error", err)
		}
	}
	if loaded != nil {
		m.mu.Lock()
		if m.status.State != StateReady {
			m.setStatusLocked(Status{State: StateReady})
		}
		m.mu.Unlock()
		return loaded, nil
	}

	m.setStatus(Status{State: StateLoading, Model: target})
	if m.runtime == nil {
		err := &UnsupportedPlatformError{Reason: "no model runtime configured"}
		m.setStatus(Status{State: StateError, Progress: err.Error(), Model: target})
		return nil, err
	}
	if err := m.runtime.Probe(ctx); err != nil {
		m.logger.Error("AI init failed", "model_id", target, "error", err)
		m.setStatus(Status{State: StateError, Progress: err.Error(), Model: target})
		return nil, err
	}

	eng := m.runtime.NewEngine()
	eng.SetProgressCallback(func(p Progress) {
		m.setStatus(Status{State: StateLoading, Progress: p.Text, ProgressVal: p.Value, Model: target})
		if onProgress != nil {
			onProgress(p)
		}
	})
	if err := eng.Reload(ctx, target); err != nil {
		m.logger.Error("AI init failed", "model_id", target, "error", err)
		m.setStatus(Status{State: StateError, Progress: err.Error(), Model: target})
		return nil, err
	}

	m.mu.Lock()
	m.engine, m.engineModel, m.current = eng, target, target
	m.setStatusLocked(Status{State: StateReady})
	m.mu.Unlock()

	m.logger.Info("model ready", "model_id", target)
	return eng, nil
}

// Generate streams a completion for prompt with the analyst system prompt.
// onUpdate receives the cumulative text after every chunk. Generations are
// sequential: a call waits for the one in flight, which runs until the
// stream ends or its ctx is done.
func (m *Manager) Generate(ctx context.Context, prompt, schemaContext string, onUpdate func(string)) (string, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	m.mu.Lock()
	eng := m.engine
	m.mu.Unlock()
	if eng == nil {
		return "", &EngineNotInitializedError{}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.setStatus(Status{State: StateGenerating})

	text, err := m.generate(ctx, eng, prompt, schemaContext, onUpdate)
	metrics.ObserveGeneration(err)
	if err != nil {
		m.setStatus(Status{State: StateError, Progress: err.Error(), Model: m.LoadedModel()})
		return text, err
	}
	m.setStatus(Status{State: StateReady, Model: m.LoadedModel()})
	return text, nil
}

func (m *Manager) generate(ctx context.Context, eng Engine, prompt, schemaContext string, onUpdate func(string)) (string, error) {
	stream, err := eng.ChatStream(ctx, ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: SystemPrompt(schemaContext)},
			{Role: RoleUser, Content: prompt},
		},
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start generation: %w", err)
	}
	defer func() { _ = stream.Close() }()

	var full strings.Builder
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return full.String(), fmt.Errorf("generation failed: %w", err)
		}
		full.WriteString(delta)
		if onUpdate != nil {
			onUpdate(full.String())
		}
	}
}

// Purge unloads any engine and deletes every cache entry that belongs to the
// model runtime. Only distinct catalog models are reported.
func (m *Manager) Purge(ctx context.Context) (PurgeResult, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	m.mu.Lock()
	eng := m.engine
	m.engine, m.engineModel = nil, ""
	m.setStatusLocked(Status{State: StateIdle})
	m.mu.Unlock()

	if eng != nil {
		if err := eng.Unload(ctx); err != nil {
			m.logger.Warn("failed to unload model", "error", err)
		}
	}

	res := PurgeResult{Models: []string{}}
	if m.runtime == nil || m.runtime.Cache() == nil {
		return res, nil
	}
	cache := m.runtime.Cache()
	keys, err := cache.Keys(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list model cache: %w", err)
	}

	seen := make(map[string]bool)
	for _, key := range keys {
		if !isModelCacheKey(key) {
			continue
		}
		m.logger.Debug("purging cache entry", "key", key)
		if d, ok := modelForKey(key); ok && !seen[d.Name] {
			seen[d.Name] = true
			res.Models = append(res.Models, d.Name)
		}
		if err := cache.Delete(ctx, key); err != nil {
			return res, fmt.Errorf("failed to delete cache entry %s: %w", key, err)
		}
	}
	res.Count = len(res.Models)
	return res, nil
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStatusLocked(s)
}

// setStatusLocked requires m.mu. An empty Model keeps the current one.
func (m *Manager) setStatusLocked(s Status) {
	if s.Model == "" {
		s.Model = m.current
	}
	m.status = s
	metrics.SetModelState(string(s.State), stateNames())
	for _, fn := range m.watchers {
		fn(s)
	}
}
