package ingest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/leapstack-labs/pith/internal/adapter"
)

// PostgresSource exports query results from Postgres as CSV for ingestion.
type PostgresSource struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSource connects with a DSN or URL.
func NewPostgresSource(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresSource, error) {
	db, err := adapter.Open(ctx, adapter.Config{Type: "postgres", Path: dsn})
	if err != nil {
		return nil, err
	}
	return NewPostgresSourceFromDB(db, logger), nil
}

// NewPostgresSourceFromDB wraps an open database.
func NewPostgresSourceFromDB(db *sql.DB, logger *slog.Logger) *PostgresSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PostgresSource{db: db, logger: logger}
}

// Close closes the connection.
func (p *PostgresSource) Close() error {
	return p.db.Close()
}

// Export runs q and returns the rows as a CSV file called name.csv.
func (p *PostgresSource) Export(ctx context.Context, name, q string) (*BufferFile, error) {
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cols); err != nil {
		return nil, err
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	record := make([]string, len(cols))
	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			record[i] = csvField(v)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres query failed: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	p.logger.Debug("exported postgres rows", "name", name, "rows", count)
	return &BufferFile{name: name + ".csv", data: buf.Bytes(), source: "postgres"}, nil
}

func csvField(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
