// Package config loads the pith CLI configuration.
//
// Values are layered with koanf: built-in defaults, then pith.yaml, then
// PITH_ environment variables, then flags given on the command line.
package config

import (
	"time"

	intconfig "github.com/leapstack-labs/pith/internal/config"
)

// Config holds all CLI configuration options.
type Config struct {
	Database     DatabaseConfig `koanf:"database"`
	StatePath    string         `koanf:"state_path"`
	AI           AIConfig       `koanf:"ai"`
	Server       ServerConfig   `koanf:"server"`
	Verbose      bool           `koanf:"verbose"`
	OutputFormat string         `koanf:"output"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// DatabaseConfig configures the embedded analytics engine.
type DatabaseConfig struct {
	// Path is the DuckDB file. Empty means in-memory.
	Path         string        `koanf:"path"`
	Threads      int           `koanf:"threads"`
	MemoryLimit  string        `koanf:"memory_limit"`
	StagingDir   string        `koanf:"staging_dir"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
	DefaultLimit int           `koanf:"default_limit"`
}

// AIConfig configures the OpenAI-compatible model server.
type AIConfig struct {
	BaseURL     string  `koanf:"base_url"`
	APIKey      string  `koanf:"api_key"`
	CacheDir    string  `koanf:"cache_dir"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
	Accelerator string  `koanf:"accelerator"`
}

// ServerConfig configures pith serve.
type ServerConfig struct {
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	WatchDir   string        `koanf:"watch_dir"`
	WatchDelay time.Duration `koanf:"watch_delay"`
}

// Default configuration values.
const (
	DefaultStateFile = intconfig.DefaultStateFile
	DefaultCacheDir  = ".pith/models"
	DefaultHost      = "127.0.0.1"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// defaults is the lowest configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"database.path":          "",
		"database.threads":       0,
		"database.memory_limit":  "",
		"database.staging_dir":   "",
		"database.query_timeout": intconfig.DefaultQueryTimeout.String(),
		"database.default_limit": intconfig.DefaultQueryLimit,
		"state_path":             DefaultStateFile,
		"ai.base_url":            intconfig.DefaultAIBaseURL,
		"ai.api_key":             "",
		"ai.cache_dir":           DefaultCacheDir,
		"ai.temperature":         intconfig.DefaultTemperature,
		"ai.max_tokens":          intconfig.DefaultMaxTokens,
		"ai.accelerator":         intconfig.DefaultAccelerator,
		"server.host":            DefaultHost,
		"server.port":            intconfig.DefaultServerPort,
		"server.watch_dir":       "",
		"server.watch_delay":     intconfig.DefaultWatchDelay.String(),
		"verbose":                false,
		"output":                 DefaultOutput,
	}
}
