package config

import (
	"fmt"

	intconfig "github.com/leapstack-labs/pith/internal/config"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.QueryTimeout < 0 {
		return fmt.Errorf("database.query_timeout must not be negative, got %s", c.Database.QueryTimeout)
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must not be negative, got %d", c.Database.Threads)
	}
	if c.Database.DefaultLimit < 0 {
		return fmt.Errorf("database.default_limit must not be negative, got %d", c.Database.DefaultLimit)
	}
	if !intconfig.ValidAccelerator(c.AI.Accelerator) {
		return fmt.Errorf("ai.accelerator must be one of auto, require or off, got %q", c.AI.Accelerator)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be between 0 and 2, got %g", c.AI.Temperature)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	switch c.OutputFormat {
	case "", "auto", "text", "markdown", "json":
	default:
		return fmt.Errorf("output must be one of auto, text, markdown or json, got %q", c.OutputFormat)
	}
	return nil
}
