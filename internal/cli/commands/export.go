package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/pith/internal/cli/output"
	"github.com/leapstack-labs/pith/internal/export"
	"github.com/spf13/cobra"
)

// ExportOptions holds options for the export command.
type ExportOptions struct {
	Format   string
	Tables   []string
	Out      string
	Compress bool
	now      func() time.Time
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tables to CSV, SQL or Excel",
		Long: `Write table contents to a file.

csv exports exactly one table. sql writes a replayable dump with CREATE TABLE
and INSERT statements for the given tables, or all of them. xlsx writes one
sheet per table. --compress wraps the file in zstd.`,
		Example: `  # Export one table as CSV
  pith export --format csv --table sales

  # Dump everything to a compressed SQL file
  pith export --format sql --compress --out backup.sql.zst

  # Write a workbook to stdout
  pith export --format xlsx --out - > tables.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "sql", "Export format: csv, sql or xlsx")
	cmd.Flags().StringSliceVarP(&opts.Tables, "table", "t", nil, "Table(s) to export")
	cmd.Flags().StringVarP(&opts.Out, "out", "O", "", "Output file, directory or - for stdout (default: conventional name)")
	cmd.Flags().BoolVar(&opts.Compress, "compress", false, "Compress with zstd")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(export.FormatCSV), string(export.FormatSQL), string(export.FormatXLSX)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions) error {
	format, err := export.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	if format == export.FormatCSV && len(opts.Tables) != 1 {
		return errors.New("csv export needs exactly one --table")
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var buf bytes.Buffer
	var out io.Writer = &buf
	var zw io.WriteCloser
	if opts.Compress {
		if zw, err = export.Compress(&buf, 0); err != nil {
			return err
		}
		out = zw
	}

	ctx := cmd.Context()
	exp := cmdCtx.App.Export
	switch format {
	case export.FormatCSV:
		err = exp.CSV(ctx, out, opts.Tables[0])
	case export.FormatXLSX:
		err = exp.XLSX(ctx, out, opts.Tables...)
	default:
		err = exp.SQLDump(ctx, out, opts.Tables...)
	}
	if err == nil && zw != nil {
		err = zw.Close()
	}
	if err != nil {
		return err
	}

	if opts.Out == "-" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}

	path := exportPath(opts, format)
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{"path": path, "format": format, "bytes": buf.Len()})
	}
	r.Success(fmt.Sprintf("Exported %s (%s)", path, output.FormatBytes(int64(buf.Len()))))
	return nil
}

// exportPath resolves --out: empty means the conventional name in the
// working directory, and a directory gets the conventional name inside it.
func exportPath(opts *ExportOptions, format export.Format) string {
	now := time.Now
	if opts.now != nil {
		now = opts.now
	}
	table := ""
	if len(opts.Tables) > 0 {
		table = opts.Tables[0]
	}
	name := export.FileName(format, table, now())
	if opts.Compress {
		name += export.CompressedExt
	}

	if opts.Out == "" {
		return name
	}
	if info, err := os.Stat(opts.Out); err == nil && info.IsDir() {
		return filepath.Join(opts.Out, name)
	}
	return opts.Out
}
