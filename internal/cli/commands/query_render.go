package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/pith/internal/cli/output"
	"github.com/leapstack-labs/pith/internal/export"
	"github.com/leapstack-labs/pith/internal/query"
	"github.com/leapstack-labs/pith/internal/schema"
	"gopkg.in/yaml.v3"
)

// Query result formats.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
	FormatYAML     = "yaml"
)

// queryFormats are offered for completion.
var queryFormats = []string{FormatTable, FormatJSON, FormatCSV, FormatMarkdown, FormatYAML}

// renderResults writes res in format. limit caps the rows shown in the
// table and markdown formats; zero shows everything.
func renderResults(w io.Writer, res *query.Result, format string, limit int) error {
	switch format {
	case FormatJSON:
		return output.NewRendererWithTTY(w, io.Discard, false, output.ModeJSON).JSON(res.Rows)
	case FormatYAML:
		return renderYAML(w, res)
	case FormatCSV:
		return export.WriteCSV(w, res)
	case FormatMarkdown, "markdown":
		return renderMarkdown(w, res, limit)
	default:
		return renderTable(w, res, limit)
	}
}

func shown(res *query.Result, limit int) int {
	if limit > 0 && limit < len(res.Rows) {
		return limit
	}
	return len(res.Rows)
}

func rowsFooter(res *query.Result, n int) string {
	if n < len(res.Rows) {
		return fmt.Sprintf("(showing %s of %s rows, %s)", output.FormatCount(n), output.FormatCount(len(res.Rows)), output.FormatDuration(res.Elapsed))
	}
	return fmt.Sprintf("(%s rows, %s)", output.FormatCount(len(res.Rows)), output.FormatDuration(res.Elapsed))
}

func renderTable(w io.Writer, res *query.Result, limit int) error {
	if len(res.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	n := shown(res, limit)
	for i := 0; i < n; i++ {
		vals := res.Values(i)
		row := make(table.Row, len(vals))
		for j, v := range vals {
			row[j] = formatValue(v)
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintln(w, rowsFooter(res, n))
	return nil
}

func renderMarkdown(w io.Writer, res *query.Result, limit int) error {
	if len(res.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(res.Columns, " | "))
	seps := make([]string, len(res.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	n := shown(res, limit)
	for i := 0; i < n; i++ {
		vals := res.Values(i)
		cells := make([]string, len(vals))
		for j, v := range vals {
			cells[j] = strings.ReplaceAll(formatValue(v), "|", `\|`)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	if n < len(res.Rows) {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, rowsFooter(res, n))
	}
	return nil
}

// renderYAML writes rows as a sequence of ordered mappings.
func renderYAML(w io.Writer, res *query.Result) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for i := range res.Rows {
		row := &yaml.Node{Kind: yaml.MappingNode}
		for j, v := range res.Values(i) {
			var val yaml.Node
			if err := val.Encode(v); err != nil {
				return err
			}
			row.Content = append(row.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: res.Columns[j]},
				&val,
			)
		}
		doc.Content = append(doc.Content, row)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

// Helper functions for subcommands

// tableLister is the subset of the schema introspector the listing needs.
type tableLister interface {
	ListTables(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, table string) (*schema.ColumnSchema, error)
}

func listTables(ctx context.Context, w io.Writer, s tableLister, format string) error {
	tables, err := s.ListTables(ctx)
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON:
		return output.NewRendererWithTTY(w, io.Discard, false, output.ModeJSON).JSON(tables)
	case FormatYAML:
		return output.NewRendererWithTTY(w, io.Discard, false, output.ModeJSON).YAML(tables)
	}

	if len(tables) == 0 {
		_, _ = fmt.Fprintln(w, "No tables found. Ingest a file with 'pith ingest <file>'.")
		return nil
	}

	res := &query.Result{Columns: []string{"name", "columns"}}
	for _, name := range tables {
		cols := 0
		if sch, err := s.Describe(ctx, name); err == nil {
			cols = len(sch.Columns)
		}
		res.Rows = append(res.Rows, query.Record{"name": name, "columns": cols})
	}
	return renderResults(w, res, format, 0)
}

func showSchema(ctx context.Context, w io.Writer, s tableLister, tableName, format string) error {
	sch, err := s.Describe(ctx, tableName)
	if err != nil {
		return fmt.Errorf("table '%s' not found: %w", tableName, err)
	}

	switch format {
	case FormatJSON:
		return output.NewRendererWithTTY(w, io.Discard, false, output.ModeJSON).JSON(sch)
	case FormatYAML:
		return output.NewRendererWithTTY(w, io.Discard, false, output.ModeJSON).YAML(sch)
	}

	res := &query.Result{Columns: []string{"column", "type", "numeric"}}
	for _, col := range sch.Columns {
		res.Rows = append(res.Rows, query.Record{"column": col.Name, "type": col.Type, "numeric": col.IsNumeric})
	}

	if format == FormatTable {
		_, _ = fmt.Fprintf(w, "Table: %s\n", tableName)
		_, _ = fmt.Fprintln(w, strings.Repeat("-", 60))
	}
	return renderResults(w, res, format, 0)
}
