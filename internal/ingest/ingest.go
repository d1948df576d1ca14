// Package ingest loads tabular files into engine tables.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/leapstack-labs/pith/internal/engine"
	"github.com/leapstack-labs/pith/internal/metrics"
	"github.com/leapstack-labs/pith/internal/query"
	"github.com/leapstack-labs/pith/internal/schema"
	"github.com/leapstack-labs/pith/internal/state"
	"github.com/zeebo/xxh3"
)

// Result describes a loaded table.
type Result struct {
	TableName   string   `json:"tableName"`
	RowCount    int      `json:"rowCount"`
	Columns     []string `json:"columns"`
	Fingerprint string   `json:"fingerprint,omitempty"`
}

// Engine is the part of the connection manager ingestion needs.
type Engine interface {
	Init(ctx context.Context) (*engine.Handle, *engine.Conn, error)
	Connection(ctx context.Context) (*engine.Conn, error)
}

// Ledger records ingestions so stale re-ingests can be reported.
type Ledger interface {
	RecordIngestion(ctx context.Context, ing state.Ingestion) error
	LastIngestion(ctx context.Context, table string) (*state.Ingestion, error)
}

// Config configures a Service.
type Config struct {
	Engine Engine
	// Normalizer runs verification queries. Defaults to one over Engine.
	Normalizer *query.Normalizer
	// Ledger is optional.
	Ledger Ledger
	Logger *slog.Logger
}

// Service loads files into tables named after them.
type Service struct {
	engine     Engine
	normalizer *query.Normalizer
	schema     *schema.Introspector
	ledger     Ledger
	logger     *slog.Logger
}

// New creates a Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := cfg.Normalizer
	if n == nil {
		n = query.New(query.Config{Engine: cfg.Engine, Logger: logger})
	}
	return &Service{
		engine:     cfg.Engine,
		normalizer: n,
		schema:     schema.New(n, logger),
		ledger:     cfg.Ledger,
		logger:     logger,
	}
}

// Ingest registers f with the engine and creates a table from it. A table
// that already exists keeps its contents.
func (s *Service) Ingest(ctx context.Context, f File) (*Result, error) {
	name := f.Name()
	decoder, err := DecoderFor(name)
	if err != nil {
		return nil, err
	}
	table := Sanitize(name)

	res, err := s.ingest(ctx, f, name, table, decoder)
	rows := 0
	if res != nil {
		rows = res.RowCount
	}
	metrics.ObserveIngestion(decoder, table, rows, err)
	return res, err
}

func (s *Service) ingest(ctx context.Context, f File, name, table, decoder string) (*Result, error) {
	handle, conn, err := s.engine.Init(ctx)
	if err != nil {
		return nil, err
	}

	fingerprint, err := s.register(handle, f)
	if err != nil {
		return nil, &IngestionError{Table: table, File: name, Err: err}
	}
	s.warnIfStale(ctx, table, name, fingerprint)

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s AS SELECT * FROM %s(%s)",
		engine.QuoteIdent(table), decoder, engine.QuoteLiteral(handle.Path(name)))
	s.logger.Debug("creating table", "table", table, "sql", stmt)
	if err := conn.Exec(ctx, stmt); err != nil {
		return nil, &IngestionError{Table: table, File: name, Err: err}
	}

	count, err := s.count(ctx, table)
	if err != nil {
		return nil, &IngestionError{Table: table, File: name, Err: err}
	}
	cols, err := s.schema.Describe(ctx, table)
	if err != nil {
		return nil, &IngestionError{Table: table, File: name, Err: err}
	}

	res := &Result{TableName: table, RowCount: count, Columns: cols.Names(), Fingerprint: fingerprint}
	s.record(ctx, f, res)
	s.logger.Info("ingested file", "file", name, "table", table, "rows", count)
	return res, nil
}

// register exposes f to the engine under its own name and returns its
// content fingerprint. Local files are linked in place; anything else, or a
// failed link, falls back to copying the bytes.
func (s *Service) register(h *engine.Handle, f File) (string, error) {
	name := f.Name()
	if p, ok := f.(pathed); ok && p.Path() != "" {
		err := h.RegisterFileHandle(name, p.Path())
		if err == nil {
			fp, err := fingerprintFile(p.Path())
			if err != nil {
				return "", err
			}
			return fp, nil
		}
		s.logger.Debug("zero-copy registration failed, copying file", "file", name, "error", err)
	}

	data, err := readAll(f)
	if err != nil {
		return "", err
	}
	if err := h.RegisterFileBuffer(name, data); err != nil {
		return "", err
	}
	return Fingerprint(data), nil
}

func (s *Service) warnIfStale(ctx context.Context, table, name, fingerprint string) {
	if s.ledger == nil {
		return
	}
	last, err := s.ledger.LastIngestion(ctx, table)
	if err != nil {
		s.logger.Warn("failed to read ingestion history", "table", table, "error", err)
		return
	}
	if last != nil && last.Fingerprint != fingerprint {
		s.logger.Warn("table already exists with different contents, keeping existing rows",
			"table", table, "file", name, "previous_file", last.File)
	}
}

func (s *Service) count(ctx context.Context, table string) (int, error) {
	res, err := s.normalizer.Run(ctx, "SELECT count(*) AS count FROM "+engine.QuoteIdent(table))
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	switch v := res.Rows[0]["count"].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int32:
		return int(v), nil
	default:
		return 0, fmt.Errorf("unexpected row count %v (%T)", v, v)
	}
}

func (s *Service) record(ctx context.Context, f File, res *Result) {
	if s.ledger == nil {
		return
	}
	err := s.ledger.RecordIngestion(ctx, state.Ingestion{
		Table:       res.TableName,
		File:        f.Name(),
		Source:      sourceOf(f),
		Fingerprint: res.Fingerprint,
		RowCount:    res.RowCount,
		IngestedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to record ingestion", "table", res.TableName, "error", err)
	}
}

// Fingerprint hashes file contents.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

func fingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
