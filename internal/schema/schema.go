// Package schema lists tables and describes their columns.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/pith/internal/engine"
	"github.com/leapstack-labs/pith/internal/query"
)

// numericTypeFragments are matched against the upper-cased column type.
var numericTypeFragments = []string{"INTEGER", "BIGINT", "DOUBLE", "FLOAT", "DECIMAL", "HUGEINT", "REAL"}

// IsNumericType reports whether an engine type name is numeric.
func IsNumericType(t string) bool {
	upper := strings.ToUpper(t)
	for _, frag := range numericTypeFragments {
		if strings.Contains(upper, frag) {
			return true
		}
	}
	return false
}

// Column is one described column.
type Column struct {
	Name      string `json:"name" mapstructure:"column_name"`
	Type      string `json:"type" mapstructure:"column_type"`
	IsNumeric bool   `json:"isNumeric" mapstructure:"-"`
}

// ColumnSchema is a table's columns in declaration order.
type ColumnSchema struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

// Names returns the column names in order.
func (s *ColumnSchema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// IsNumeric reports whether col exists and is numeric.
func (s *ColumnSchema) IsNumeric(col string) bool {
	for _, c := range s.Columns {
		if c.Name == col {
			return c.IsNumeric
		}
	}
	return false
}

// NumericColumns returns the names of numeric columns in order.
func (s *ColumnSchema) NumericColumns() []string {
	out := []string{}
	for _, c := range s.Columns {
		if c.IsNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// Type returns the declared type of col, or "" when absent.
func (s *ColumnSchema) Type(col string) string {
	for _, c := range s.Columns {
		if c.Name == col {
			return c.Type
		}
	}
	return ""
}

// Runner executes SQL through the normalizer.
type Runner interface {
	Run(ctx context.Context, q any) (*query.Result, error)
}

// Introspector reads catalog information through the shared normalizer.
type Introspector struct {
	runner Runner
	logger *slog.Logger
}

// New creates an Introspector.
func New(runner Runner, logger *slog.Logger) *Introspector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Introspector{runner: runner, logger: logger}
}

// ListTables returns the table names in engine order.
func (i *Introspector) ListTables(ctx context.Context) ([]string, error) {
	res, err := i.runner.Run(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if name, ok := row["name"].(string); ok {
			tables = append(tables, name)
		}
	}
	return tables, nil
}

// Describe returns the ordered columns of table.
func (i *Introspector) Describe(ctx context.Context, table string) (*ColumnSchema, error) {
	res, err := i.runner.Run(ctx, "DESCRIBE "+engine.QuoteIdent(table))
	if err != nil {
		return nil, err
	}

	schema := &ColumnSchema{Table: table, Columns: make([]Column, 0, len(res.Rows))}
	for _, row := range res.Rows {
		var col Column
		if err := mapstructure.Decode(row, &col); err != nil {
			return nil, fmt.Errorf("failed to decode column of %s: %w", table, err)
		}
		col.IsNumeric = IsNumericType(col.Type)
		schema.Columns = append(schema.Columns, col)
	}
	return schema, nil
}

// Describer is the subset of Introspector the AI context needs.
type Describer interface {
	ListTables(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, table string) (*ColumnSchema, error)
}

// Context renders every table and its columns as prompt context for the
// language model. Tables that fail to describe are skipped.
func (i *Introspector) Context(ctx context.Context) (string, error) {
	return BuildContext(ctx, i, i.logger)
}

// BuildContext renders the schema context from any Describer.
func BuildContext(ctx context.Context, d Describer, logger *slog.Logger) (string, error) {
	tables, err := d.ListTables(ctx)
	if err != nil {
		return "", err
	}
	if len(tables) == 0 {
		return "No tables found.", nil
	}

	var b strings.Builder
	for _, t := range tables {
		s, err := d.Describe(ctx, t)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping table in schema context", "table", t, "error", err)
			}
			continue
		}
		cols := make([]string, len(s.Columns))
		for j, c := range s.Columns {
			cols[j] = fmt.Sprintf("%s (%s)", c.Name, c.Type)
		}
		fmt.Fprintf(&b, "Table: %s\nColumns: %s\n\n", t, strings.Join(cols, ", "))
	}
	return b.String(), nil
}
