package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// ResultSet is a fully materialized query result in engine column order.
type ResultSet struct {
	Columns []string
	Types   []string
	Rows    [][]any
}

// Conn is the single connection shared by every feature. Statements are
// serialized: each Query or Exec holds the connection until its result is
// fully read.
type Conn struct {
	mu   sync.Mutex
	conn *sql.Conn
}

// Query runs a statement and reads every row before returning.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	types := make([]string, len(cols))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			types[i] = ct.DatabaseTypeName()
		}
	}

	rs := &ResultSet{Columns: cols, Types: types}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// Exec runs a statement that returns no rows.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.conn.ExecContext(ctx, query, args...)
	return err
}

func (c *Conn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
