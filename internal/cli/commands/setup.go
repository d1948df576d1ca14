package commands

import (
	"log/slog"

	"github.com/leapstack-labs/pith/internal/ai"
	"github.com/leapstack-labs/pith/internal/app"
	"github.com/leapstack-labs/pith/internal/cli/config"
	"github.com/leapstack-labs/pith/internal/cli/output"
	"github.com/leapstack-labs/pith/internal/engine"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	App      *app.App
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with the app and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutApp(cmd)

	a, err := app.New(cmd.Context(), appOptions(cmdCtx.Cfg, cmdCtx.Logger))
	if err != nil {
		return nil, nil, err
	}
	cmdCtx.App = a

	cleanup := func() {
		if err := a.Close(); err != nil {
			cmdCtx.Logger.Warn("failed to close", "error", err)
		}
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutApp creates a CommandContext without the app.
// Useful for commands that don't need the engine or state store.
func NewCommandContextWithoutApp(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		mode = output.ModeAuto
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}
}

// getConfig returns the current configuration, loading defaults when the
// root command did not run.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg, err := config.LoadConfig("", nil)
	if err != nil {
		return &config.Config{StatePath: config.DefaultStateFile, OutputFormat: config.DefaultOutput}
	}
	return cfg
}

func appOptions(cfg *config.Config, logger *slog.Logger) app.Options {
	return app.Options{
		Engine: engine.Settings{
			DatabasePath: cfg.Database.Path,
			Threads:      cfg.Database.Threads,
			MemoryLimit:  cfg.Database.MemoryLimit,
			StagingDir:   cfg.Database.StagingDir,
		},
		StatePath:    cfg.StatePath,
		QueryTimeout: cfg.Database.QueryTimeout,
		AI: ai.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			CacheDir:    cfg.AI.CacheDir,
			Accelerator: cfg.AI.Accelerator,
		},
		Temperature: float32(cfg.AI.Temperature),
		MaxTokens:   cfg.AI.MaxTokens,
		Logger:      logger,
	}
}
