// Package engine owns the embedded DuckDB instance: one database handle and
// one shared connection per Manager, created lazily on first use.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/leapstack-labs/pith/internal/adapter"
	"golang.org/x/sync/singleflight"
)

// Settings configures the engine instance.
type Settings struct {
	// DatabasePath is the DuckDB file. Empty means in-memory.
	DatabasePath string
	// Threads caps engine worker threads. Zero uses the host CPU count.
	Threads int
	// MemoryLimit is passed through to the engine (e.g. "4GB").
	MemoryLimit string
	// StagingDir holds registered files. Empty creates a temporary directory
	// that is removed on Close.
	StagingDir string
}

// OpenFunc opens the database for resolved settings.
type OpenFunc func(ctx context.Context, s Settings) (*sql.DB, error)

// Option configures a Manager.
type Option func(*Manager)

// WithOpener replaces the DuckDB opener. Tests use it to inject sqlmock.
func WithOpener(open OpenFunc) Option {
	return func(m *Manager) { m.open = open }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager creates and caches the database handle and connection.
type Manager struct {
	settings Settings
	open     OpenFunc
	logger   *slog.Logger

	group singleflight.Group

	mu     sync.Mutex
	db     *sql.DB
	handle *Handle
	conn   *Conn
}

// NewManager returns a Manager. Nothing is opened until Init.
func NewManager(settings Settings, opts ...Option) *Manager {
	m := &Manager{
		settings: settings,
		open:     openDuckDB,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type initResult struct {
	handle *Handle
	conn   *Conn
}

// Init returns the handle and connection, creating them on first call.
// Concurrent callers share a single in-flight initialization.
func (m *Manager) Init(ctx context.Context) (*Handle, *Conn, error) {
	if h, c := m.cached(); h != nil {
		return h, c, nil
	}

	// The first caller's cancellation must not abort initialization that
	// other callers are waiting on.
	detached := context.WithoutCancel(ctx)
	v, err, shared := m.group.Do("init", func() (any, error) {
		return m.initialize(detached)
	})
	if err != nil {
		return nil, nil, err
	}
	if shared {
		m.logger.Debug("joined in-flight engine initialization")
	}
	res := v.(initResult)
	return res.handle, res.conn, nil
}

// Handle returns the cached handle, or ErrNotInitialized.
func (m *Manager) Handle() (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return nil, &NotInitializedError{}
	}
	return m.handle, nil
}

// Connection returns the shared connection, initializing the engine if needed.
func (m *Manager) Connection(ctx context.Context) (*Conn, error) {
	_, conn, err := m.Init(ctx)
	return conn, err
}

// Initialized reports whether Init has completed successfully.
func (m *Manager) Initialized() bool {
	h, _ := m.cached()
	return h != nil
}

// Close tears down the connection, the database and any staging directory
// the manager created. The next Init starts from scratch.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.conn != nil {
		if err := m.conn.close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	if m.handle != nil {
		if err := m.handle.close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove staging files: %w", err))
		}
	}
	m.db, m.conn, m.handle = nil, nil, nil
	return errors.Join(errs...)
}

// Reset is Close under the name tests use.
func (m *Manager) Reset() error { return m.Close() }

func (m *Manager) cached() (*Handle, *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle, m.conn
}

func (m *Manager) initialize(ctx context.Context) (initResult, error) {
	// A previous flight may have finished between the cache check and Do.
	if h, c := m.cached(); h != nil {
		return initResult{handle: h, conn: c}, nil
	}

	prof, err := selectProfile(m.settings)
	if err != nil {
		return initResult{}, &EngineInitError{Stage: "profile", Err: err}
	}
	m.logger.Debug("selected engine profile",
		"threads", prof.settings.Threads,
		"staging_dir", prof.settings.StagingDir,
		"database", displayPath(prof.settings.DatabasePath))

	db, err := m.open(ctx, prof.settings)
	if err != nil {
		prof.cleanup()
		return initResult{}, &EngineInitError{Stage: "open", Err: err}
	}

	sqlConn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		prof.cleanup()
		return initResult{}, &EngineInitError{Stage: "connect", Err: err}
	}

	handle := newHandle(prof.settings.StagingDir, prof.ownsStaging)
	conn := &Conn{conn: sqlConn}

	m.mu.Lock()
	m.db, m.handle, m.conn = db, handle, conn
	m.mu.Unlock()

	m.logger.Info("database engine ready", "database", displayPath(prof.settings.DatabasePath))
	return initResult{handle: handle, conn: conn}, nil
}

type profile struct {
	settings    Settings
	ownsStaging bool
}

func (p profile) cleanup() {
	if p.ownsStaging {
		_ = os.RemoveAll(p.settings.StagingDir)
	}
}

// selectProfile resolves host-dependent settings and checks that the staging
// directory is usable before anything is opened.
func selectProfile(s Settings) (profile, error) {
	p := profile{settings: s}
	if p.settings.Threads <= 0 {
		p.settings.Threads = runtime.NumCPU()
	}

	if p.settings.StagingDir == "" {
		dir, err := os.MkdirTemp("", "pith-staging-*")
		if err != nil {
			return p, fmt.Errorf("failed to create staging directory: %w", err)
		}
		p.settings.StagingDir = dir
		p.ownsStaging = true
	} else if err := os.MkdirAll(p.settings.StagingDir, 0o750); err != nil {
		return p, fmt.Errorf("failed to create staging directory: %w", err)
	}

	probe, err := os.CreateTemp(p.settings.StagingDir, ".probe-*")
	if err != nil {
		p.cleanup()
		return p, fmt.Errorf("staging directory %s is not writable: %w", p.settings.StagingDir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	return p, nil
}

func openDuckDB(ctx context.Context, s Settings) (*sql.DB, error) {
	return adapter.Open(ctx, adapter.Config{
		Type:        "duckdb",
		Path:        s.DatabasePath,
		Threads:     s.Threads,
		MemoryLimit: s.MemoryLimit,
		SearchPath:  s.StagingDir,
	})
}

func displayPath(path string) string {
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	return path
}
