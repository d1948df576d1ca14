package commands

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/pith/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Replay SQL dumps or load CSV exports",
		Long: `Import files written by pith export.

.sql files are replayed statement by statement. A failing statement is
reported and skipped. .csv files become a table named after the file.
Files ending in .zst are decompressed first.`,
		Example: `  # Restore a dump
  pith import backup.sql.zst

  # Load a CSV export back
  pith import sales_export.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			r := cmdCtx.Renderer
			var results []any
			for _, path := range args {
				f, err := os.Open(path) //nolint:gosec
				if err != nil {
					return err
				}
				res, err := cmdCtx.App.Import.File(cmd.Context(), path, f)
				_ = f.Close()
				if err != nil {
					return err
				}
				results = append(results, res)

				if r.EffectiveMode() == output.ModeJSON {
					continue
				}
				switch {
				case res.Table != "":
					r.StatusLine(path, "success", "table "+res.Table)
				case res.Failed > 0:
					r.StatusLine(path, "failed", fmt.Sprintf("%d statements run, %d failed", res.Executed, res.Failed))
				default:
					r.StatusLine(path, "success", fmt.Sprintf("%d statements run", res.Executed))
				}
			}

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(results)
			}
			return nil
		},
	}
}
