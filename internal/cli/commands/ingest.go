package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/pith/internal/cli/output"
	"github.com/leapstack-labs/pith/internal/ingest"
	"github.com/spf13/cobra"
)

// IngestOptions holds options for the ingest command.
type IngestOptions struct {
	Postgres   string
	Query      string
	Name       string
	Region     string
	Endpoint   string
	PathStyle  bool
	KeepGoing  bool
	sourceInit func(ctx context.Context) (*ingest.S3Source, error)
}

// ingestOutcome is one row of the ingest summary.
type ingestOutcome struct {
	Source string         `json:"source"`
	Result *ingest.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand() *cobra.Command {
	opts := &IngestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest [file|dir|s3://bucket/key]...",
		Short: "Load data files into tables",
		Long: `Load CSV, JSON or Parquet files into the workbench database.

Each file becomes a table named after it: lowercased, with anything that is
not a letter, digit or underscore replaced. A directory ingests every
supported file in it. Objects on S3 are downloaded with the default AWS
credential chain. With --postgres, the rows of --query are exported from
Postgres and ingested as a CSV named --name.`,
		Example: `  # Ingest local files
  pith ingest sales.csv events.parquet

  # Ingest a whole folder
  pith ingest ./data

  # Ingest from S3 (or an S3-compatible store)
  pith ingest s3://analytics/exports/orders.csv --endpoint http://localhost:9000 --path-style

  # Copy a Postgres query result
  pith ingest --postgres "postgres://localhost/shop" --query "SELECT * FROM orders" --name orders`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Postgres, "postgres", "", "Postgres connection string to copy from")
	cmd.Flags().StringVar(&opts.Query, "query", "", "Query to run on Postgres")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Table name for the Postgres export")
	cmd.Flags().StringVar(&opts.Region, "region", "", "AWS region for s3:// sources")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "Endpoint override for S3-compatible stores")
	cmd.Flags().BoolVar(&opts.PathStyle, "path-style", false, "Use path-style S3 addressing")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "Continue after a file fails")

	cmd.AddCommand(newIngestHistoryCommand())

	return cmd
}

func runIngest(cmd *cobra.Command, args []string, opts *IngestOptions) error {
	if len(args) == 0 && opts.Postgres == "" {
		return errors.New("nothing to ingest: pass files, a directory, an s3:// URI or --postgres")
	}
	if opts.Postgres != "" && (opts.Query == "" || opts.Name == "") {
		return errors.New("--postgres needs --query and --name")
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	r := cmdCtx.Renderer
	var outcomes []ingestOutcome
	var failed int

	ingestOne := func(label string, load func() (ingest.File, error)) error {
		var spinner *output.Spinner
		if r.EffectiveMode() == output.ModeText {
			spinner = r.NewSpinner("Ingesting " + label + "...")
			spinner.Start()
		}

		res, err := func() (*ingest.Result, error) {
			f, err := load()
			if err != nil {
				return nil, err
			}
			return cmdCtx.App.Ingest.Ingest(ctx, f)
		}()
		if err != nil {
			failed++
			if spinner != nil {
				spinner.Fail(label)
			}
			outcomes = append(outcomes, ingestOutcome{Source: label, Error: err.Error()})
			if !opts.KeepGoing {
				return err
			}
			cmdCtx.Logger.Error("ingestion failed", "file", label, "error", err)
			return nil
		}
		if spinner != nil {
			spinner.Success(fmt.Sprintf("%s → %s", label, res.TableName))
		}
		outcomes = append(outcomes, ingestOutcome{Source: label, Result: res})
		return nil
	}

	var s3src *ingest.S3Source
	for _, arg := range args {
		switch {
		case ingest.IsS3URI(arg):
			if s3src == nil {
				if s3src, err = newS3Source(ctx, cmdCtx, opts); err != nil {
					return err
				}
			}
			uri := arg
			if err := ingestOne(uri, func() (ingest.File, error) { return s3src.Fetch(ctx, uri) }); err != nil {
				return err
			}
		default:
			paths, err := expandPaths(arg)
			if err != nil {
				return err
			}
			for _, p := range paths {
				path := p
				if err := ingestOne(path, func() (ingest.File, error) { return ingest.FromPath(path), nil }); err != nil {
					return err
				}
			}
		}
	}

	if opts.Postgres != "" {
		src, err := ingest.NewPostgresSource(ctx, opts.Postgres, cmdCtx.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()
		if err := ingestOne("postgres:"+opts.Name, func() (ingest.File, error) {
			return src.Export(ctx, opts.Name, opts.Query)
		}); err != nil {
			return err
		}
	}

	if err := renderIngestSummary(r, outcomes); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed to ingest", failed, len(outcomes))
	}
	return nil
}

func newS3Source(ctx context.Context, cmdCtx *CommandContext, opts *IngestOptions) (*ingest.S3Source, error) {
	if opts.sourceInit != nil {
		return opts.sourceInit(ctx)
	}
	return ingest.NewS3Source(ctx, ingest.S3Config{
		Region:    opts.Region,
		Endpoint:  opts.Endpoint,
		PathStyle: opts.PathStyle,
	}, cmdCtx.Logger)
}

// expandPaths returns path itself, or the supported files of a directory in
// name order.
func expandPaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !ingest.Supported(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(path, e.Name()))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no supported data files in %s", path)
	}
	return out, nil
}

func renderIngestSummary(r *output.Renderer, outcomes []ingestOutcome) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(outcomes)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Ingested"))
		r.Println()
		for _, o := range outcomes {
			if o.Result == nil {
				r.Println(output.FormatKeyValue(o.Source, "failed: "+o.Error))
				continue
			}
			r.Println(output.FormatKeyValue(o.Result.TableName,
				fmt.Sprintf("%s rows, %d columns from %s", output.FormatCount(o.Result.RowCount), len(o.Result.Columns), o.Source)))
		}
		return nil
	default:
		r.Println()
		r.Header(2, "Tables")
		for _, o := range outcomes {
			if o.Result == nil {
				r.StatusLine(o.Source, "failed", o.Error)
				continue
			}
			r.StatusLine(o.Result.TableName, "success",
				fmt.Sprintf("%s rows · %d columns", output.FormatCount(o.Result.RowCount), len(o.Result.Columns)))
		}
		return nil
	}
}

// newIngestHistoryCommand lists past ingestions from the state store.
func newIngestHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List past ingestions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := cmdCtx.App.State.ListIngestions(cmd.Context())
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(list)
			}
			if len(list) == 0 {
				r.Muted("No ingestions recorded yet")
				return nil
			}
			r.Header(1, "Ingestions")
			for _, ing := range list {
				r.StatusLine(ing.Table, "success",
					fmt.Sprintf("%s rows from %s (%s, %s)", output.FormatCount(ing.RowCount), ing.File, ing.Source, output.FormatAgo(ing.IngestedAt)))
			}
			return nil
		},
	}
}
