// Package export writes engine tables out as CSV, SQL dumps or XLSX
// workbooks, optionally zstd-compressed.
package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/pith/internal/engine"
	"github.com/leapstack-labs/pith/internal/query"
	"github.com/leapstack-labs/pith/internal/schema"
)

// Banner opens every SQL dump.
const Banner = "-- Pith Analytics SQL Export"

// Format is an export file format.
type Format string

// Formats.
const (
	FormatCSV  Format = "csv"
	FormatSQL  Format = "sql"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatSQL, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv, sql or xlsx)", s)
	}
}

// Table is one table's contents ready to write.
type Table struct {
	Name   string
	Schema *schema.ColumnSchema
	Data   *query.Result
}

// WriteCSV writes a result as CSV: a header line, then one line per row.
// Header names are quoted only when they need it.
func WriteCSV(w io.Writer, res *query.Result) error {
	bw := bufio.NewWriter(w)
	fields := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		fields[i] = csvHeader(c)
	}
	if _, err := bw.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
		return err
	}
	for i := range res.Rows {
		for j, v := range res.Values(i) {
			fields[j] = csvField(v)
		}
		if _, err := bw.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteSQLDump writes tables as a replayable SQL script. Tables without rows
// are skipped.
func WriteSQLDump(w io.Writer, tables []Table, generated time.Time) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n-- Generated: %s\n\n", Banner, generated.UTC().Format(time.RFC3339))

	for _, t := range tables {
		if t.Data == nil || len(t.Data.Rows) == 0 {
			continue
		}
		name := engine.QuoteIdent(t.Name)
		fmt.Fprintf(bw, "-- Table: %s\n", t.Name)
		fmt.Fprintf(bw, "DROP TABLE IF EXISTS %s;\n", name)

		defs := make([]string, 0, len(t.Schema.Columns))
		for _, c := range t.Schema.Columns {
			defs = append(defs, engine.QuoteIdent(c.Name)+" "+c.Type)
		}
		fmt.Fprintf(bw, "CREATE TABLE %s (%s);\n\n", name, strings.Join(defs, ", "))

		values := make([]string, len(t.Data.Columns))
		for i := range t.Data.Rows {
			for j, v := range t.Data.Values(i) {
				values[j] = sqlLiteral(v)
			}
			fmt.Fprintf(bw, "INSERT INTO %s VALUES (%s);\n", name, strings.Join(values, ", "))
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// Runner executes SQL.
type Runner interface {
	Run(ctx context.Context, q any) (*query.Result, error)
}

// Catalog lists and describes tables.
type Catalog interface {
	ListTables(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, table string) (*schema.ColumnSchema, error)
}

// Exporter reads tables through the normalizer and writes them out.
type Exporter struct {
	runner  Runner
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Exporter.
func New(runner Runner, catalog Catalog, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{runner: runner, catalog: catalog, logger: logger, now: time.Now}
}

// Tables returns the named tables, or every table when names is empty.
func (e *Exporter) Tables(ctx context.Context, names ...string) ([]Table, error) {
	if len(names) == 0 {
		all, err := e.catalog.ListTables(ctx)
		if err != nil {
			return nil, err
		}
		names = all
	}
	if len(names) == 0 {
		return nil, ErrNoTables
	}

	out := make([]Table, 0, len(names))
	for _, name := range names {
		sch, err := e.catalog.Describe(ctx, name)
		if err != nil {
			return nil, err
		}
		data, err := e.runner.Run(ctx, "SELECT * FROM "+engine.QuoteIdent(name))
		if err != nil {
			return nil, err
		}
		e.logger.Debug("table read for export", "table", name, "rows", len(data.Rows))
		out = append(out, Table{Name: name, Schema: sch, Data: data})
	}
	return out, nil
}

// CSV writes one table as CSV.
func (e *Exporter) CSV(ctx context.Context, w io.Writer, table string) error {
	tables, err := e.Tables(ctx, table)
	if err != nil {
		return err
	}
	return WriteCSV(w, tables[0].Data)
}

// SQLDump writes the named tables, or all of them, as one SQL script.
func (e *Exporter) SQLDump(ctx context.Context, w io.Writer, tables ...string) error {
	ts, err := e.Tables(ctx, tables...)
	if err != nil {
		return err
	}
	return WriteSQLDump(w, ts, e.now())
}

// XLSX writes the named tables, or all of them, as one workbook with a sheet
// per table.
func (e *Exporter) XLSX(ctx context.Context, w io.Writer, tables ...string) error {
	ts, err := e.Tables(ctx, tables...)
	if err != nil {
		return err
	}
	return WriteXLSX(w, ts)
}

// FileName is the conventional download name for an export.
func FileName(f Format, table string, at time.Time) string {
	switch f {
	case FormatCSV:
		return table + "_export.csv"
	case FormatXLSX:
		return fmt.Sprintf("pith_export_%d.xlsx", at.UnixMilli())
	default:
		return fmt.Sprintf("pith_export_%d.sql", at.UnixMilli())
	}
}
