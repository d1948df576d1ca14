// Package query runs SQL on the shared engine connection and normalizes the
// result into plain JSON-safe records.
package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/leapstack-labs/pith/internal/engine"
	"github.com/leapstack-labs/pith/internal/metrics"
)

// Record is one result row keyed by column name.
type Record = map[string]any

// Result is a normalized query result. Columns keep engine order.
type Result struct {
	Rows    []Record      `json:"rows"`
	Columns []string      `json:"columns"`
	Elapsed time.Duration `json:"-"`
}

// ElapsedMillis is Elapsed rounded to whole milliseconds.
func (r *Result) ElapsedMillis() int64 {
	return r.Elapsed.Milliseconds()
}

// Values returns row i in column order.
func (r *Result) Values(i int) []any {
	out := make([]any, len(r.Columns))
	for j, c := range r.Columns {
		out[j] = r.Rows[i][c]
	}
	return out
}

// Connector hands out the shared engine connection.
type Connector interface {
	Connection(ctx context.Context) (*engine.Conn, error)
}

// Config configures a Normalizer.
type Config struct {
	Engine Connector
	// Timeout bounds each statement. Zero disables it.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Normalizer executes query-like values and scrubs their results.
type Normalizer struct {
	engine  Connector
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Normalizer.
func New(cfg Config) *Normalizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Normalizer{engine: cfg.Engine, timeout: cfg.Timeout, logger: logger}
}

// Run resolves q to SQL, executes it and returns normalized rows. A value that
// carries no SQL yields an empty result without touching the engine.
func (n *Normalizer) Run(ctx context.Context, q any) (*Result, error) {
	sql, ok := ResolveSQL(q)
	if !ok {
		n.logger.Debug("query carries no SQL, returning empty result")
		return emptyResult(), nil
	}

	conn, err := n.engine.Connection(ctx)
	if err != nil {
		return nil, err
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	start := time.Now()
	rs, err := conn.Query(ctx, sql)
	elapsed := time.Since(start)
	metrics.ObserveQuery(elapsed, err)
	if err != nil {
		n.logger.Debug("query failed", "sql", sql, "error", err)
		return nil, &QueryExecutionError{SQL: sql, Err: err}
	}

	res := normalize(rs)
	res.Elapsed = elapsed
	n.logger.Debug("query executed", "rows", len(res.Rows), "elapsed", elapsed)
	return res, nil
}

func normalize(rs *engine.ResultSet) *Result {
	if len(rs.Rows) == 0 {
		return emptyResult()
	}

	res := &Result{
		Rows:    make([]Record, 0, len(rs.Rows)),
		Columns: append([]string(nil), rs.Columns...),
	}
	for _, row := range rs.Rows {
		rec := make(Record, len(rs.Columns))
		for i, col := range rs.Columns {
			rec[col] = Scrub(row[i])
		}
		res.Rows = append(res.Rows, rec)
	}
	return res
}

func emptyResult() *Result {
	return &Result{Rows: []Record{}, Columns: []string{}}
}
