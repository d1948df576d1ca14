// Package visual adapts the query normalizer to the visualization
// coordinator's connector contract.
package visual

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/leapstack-labs/pith/internal/query"
)

// Runner executes query-like values.
type Runner interface {
	Run(ctx context.Context, q any) (*query.Result, error)
}

// Connector answers coordinator queries with columnar tables.
type Connector struct {
	runner Runner
	logger *slog.Logger
}

// NewConnector creates a Connector over the normalizer.
func NewConnector(runner Runner, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Connector{runner: runner, logger: logger}
}

// Query runs q and wraps the scrubbed rows in a Table. Failures are logged
// and returned unchanged.
func (c *Connector) Query(ctx context.Context, q any) (*Table, error) {
	res, err := c.runner.Run(ctx, q)
	if err != nil {
		sql, _ := query.ResolveSQL(q)
		c.logger.Error("visualization query failed", "sql", sql, "error", err)
		return nil, err
	}
	return newTable(res), nil
}

// Table is a query result readable by row or by column.
type Table struct {
	columns []string
	rows    []query.Record
}

func newTable(res *query.Result) *Table {
	return &Table{columns: res.Columns, rows: res.Rows}
}

// Rows returns the records.
func (t *Table) Rows() []query.Record { return t.rows }

// ColumnNames returns the column names in engine order.
func (t *Table) ColumnNames() []string { return t.columns }

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.rows) }

// Column returns every value of one column, or nil if the column is absent.
func (t *Table) Column(name string) []any {
	found := false
	for _, c := range t.columns {
		if c == name {
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	out := make([]any, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[name]
	}
	return out
}

// Columns returns the table keyed by column name.
func (t *Table) Columns() map[string][]any {
	out := make(map[string][]any, len(t.columns))
	for _, c := range t.columns {
		out[c] = t.Column(c)
	}
	return out
}

// MarshalJSON encodes the table as an array of row objects.
func (t *Table) MarshalJSON() ([]byte, error) {
	if t.rows == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.rows)
}
