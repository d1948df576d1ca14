package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordIngestion appends an entry to the ingestion ledger.
func (s *SQLiteStore) RecordIngestion(ctx context.Context, ing Ingestion) error {
	if s.db == nil {
		return errNotOpened
	}

	if ing.ID == "" {
		ing.ID = generateID()
	}
	if ing.IngestedAt.IsZero() {
		ing.IngestedAt = time.Now().UTC()
	}
	if ing.Source == "" {
		ing.Source = "file"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestions (id, table_name, file_name, source, fingerprint, row_count, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ing.ID, ing.Table, ing.File, ing.Source, ing.Fingerprint, ing.RowCount, ing.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record ingestion: %w", err)
	}
	return nil
}

// LastIngestion returns the most recent ledger entry for table, or nil.
func (s *SQLiteStore) LastIngestion(ctx context.Context, table string) (*Ingestion, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, table_name, file_name, source, fingerprint, row_count, ingested_at
		 FROM ingestions WHERE table_name = ? ORDER BY ingested_at DESC, rowid DESC LIMIT 1`,
		table,
	)
	ing, err := scanIngestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last ingestion: %w", err)
	}
	return ing, nil
}

// ListIngestions returns the ledger, newest first.
func (s *SQLiteStore) ListIngestions(ctx context.Context) ([]Ingestion, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, table_name, file_name, source, fingerprint, row_count, ingested_at
		 FROM ingestions ORDER BY ingested_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Ingestion
	for rows.Next() {
		ing, err := scanIngestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingestion: %w", err)
		}
		out = append(out, *ing)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIngestion(row scanner) (*Ingestion, error) {
	ing := &Ingestion{}
	if err := row.Scan(&ing.ID, &ing.Table, &ing.File, &ing.Source, &ing.Fingerprint, &ing.RowCount, &ing.IngestedAt); err != nil {
		return nil, err
	}
	return ing, nil
}
