// Package adapter opens database/sql handles for the engines Pith talks to:
// the embedded DuckDB analytics engine and external Postgres sources.
package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Config holds the configuration for opening a database.
type Config struct {
	// Type selects the registered opener ("duckdb", "postgres").
	Type string

	// Path is the DuckDB database file. Empty or ":memory:" means in-memory.
	Path string

	// Threads caps DuckDB worker threads. Zero keeps the engine default.
	Threads int

	// MemoryLimit is passed to DuckDB's memory_limit setting (e.g. "2GB").
	MemoryLimit string

	// SearchPath is the directory DuckDB resolves bare file names against.
	SearchPath string

	// Network databases.
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Options contains additional driver-specific options.
	Options map[string]string
}

// Opener opens a database handle for a Config.
type Opener func(ctx context.Context, cfg Config) (*sql.DB, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Opener)
)

// Register makes an opener available under the given type name.
// Registering the same name twice replaces the previous opener.
func Register(name string, opener Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = opener
}

// IsRegistered reports whether an opener exists for name.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[strings.ToLower(name)]
	return ok
}

// ListAdapters returns the registered adapter names, sorted.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens and pings a database using the opener registered for cfg.Type.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	registryMu.RLock()
	opener, ok := registry[strings.ToLower(cfg.Type)]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	return opener(ctx, cfg)
}

// UnknownAdapterError is returned when no opener is registered for a type.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown adapter type %q: no adapters registered", e.Type)
	}
	return fmt.Sprintf("unknown adapter type %q (available: %s)", e.Type, strings.Join(e.Available, ", "))
}
