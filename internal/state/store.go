// Package state persists Pith's local state in SQLite: user preferences and
// the ingestion ledger used to detect stale re-ingests.
package state

import (
	"context"
	"time"
)

// Ingestion records one successful ingestion of a file into a table.
type Ingestion struct {
	ID          string    `json:"id"`
	Table       string    `json:"table"`
	File        string    `json:"file"`
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint"`
	RowCount    int       `json:"row_count"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// Store is the persistence surface used by the rest of the application.
type Store interface {
	GetPref(ctx context.Context, key string) (string, bool, error)
	SetPref(ctx context.Context, key, value string) error
	ListPrefs(ctx context.Context) (map[string]string, error)

	RecordIngestion(ctx context.Context, ing Ingestion) error
	LastIngestion(ctx context.Context, table string) (*Ingestion, error)
	ListIngestions(ctx context.Context) ([]Ingestion, error)

	Close() error
}

var _ Store = (*SQLiteStore)(nil)
