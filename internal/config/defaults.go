// Package config holds default values shared by the CLI, the server and the
// core services.
package config

import "time"

// Default configuration values.
const (
	DefaultStateFile    = ".pith/state.db"
	DefaultQueryTimeout = 30 * time.Second
	DefaultQueryLimit   = 1000
	DefaultServerPort   = 8765
	DefaultWatchDelay   = 250 * time.Millisecond

	// MaxFileSize bounds uploads accepted by the ingestion endpoints.
	MaxFileSize = 500 << 20
)

// AI runtime defaults.
const (
	DefaultAIBaseURL   = "http://127.0.0.1:8080/v1"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
	DefaultAccelerator = AcceleratorAuto
)

// Accelerator modes control the hardware probe run before a model loads.
const (
	AcceleratorAuto    = "auto"
	AcceleratorRequire = "require"
	AcceleratorOff     = "off"
)

// ValidAccelerator reports whether mode is a known accelerator mode.
func ValidAccelerator(mode string) bool {
	switch mode {
	case AcceleratorAuto, AcceleratorRequire, AcceleratorOff:
		return true
	}
	return false
}
