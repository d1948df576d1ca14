// Package importer loads SQL dumps and CSV files back into the engine.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/leapstack-labs/pith/internal/engine"
	"github.com/leapstack-labs/pith/internal/export"
)

// previewLen bounds how much of a failed statement is logged.
const previewLen = 100

var nonIdentChar = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Engine is the part of the connection manager imports need.
type Engine interface {
	Init(ctx context.Context) (*engine.Handle, *engine.Conn, error)
}

// Result summarizes an import.
type Result struct {
	Kind string `json:"kind"`
	// Table is set for CSV imports.
	Table string `json:"table,omitempty"`
	// Executed and Failed count SQL statements.
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
}

// Importer replays exports into the engine.
type Importer struct {
	engine Engine
	logger *slog.Logger
}

// New creates an Importer.
func New(eng Engine, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{engine: eng, logger: logger}
}

// File imports r by the extension of name: .sql dumps are replayed and .csv
// files become tables. A trailing .zst is decompressed first.
func (im *Importer) File(ctx context.Context, name string, r io.Reader) (*Result, error) {
	rc, plain, err := export.Decompress(r, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	switch strings.ToLower(filepath.Ext(plain)) {
	case ".sql":
		return im.SQLDump(ctx, string(data))
	case ".csv":
		return im.CSV(ctx, filepath.Base(plain), data)
	default:
		return nil, fmt.Errorf("cannot import %s: expected a .sql or .csv file", name)
	}
}

// SQLDump executes every statement of script. A failing statement is logged
// and skipped; the rest still run.
func (im *Importer) SQLDump(ctx context.Context, script string) (*Result, error) {
	_, conn, err := im.engine.Init(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Kind: "sql"}
	for _, stmt := range Statements(script) {
		if err := conn.Exec(ctx, stmt); err != nil {
			res.Failed++
			im.logger.Warn("statement failed", "statement", preview(stmt), "error", err)
			continue
		}
		res.Executed++
	}
	im.logger.Info("SQL imported", "executed", res.Executed, "failed", res.Failed)
	return res, nil
}

// CSV registers data under name and creates a table from it. The table keeps
// the file's casing; existing tables are left alone.
func (im *Importer) CSV(ctx context.Context, name string, data []byte) (*Result, error) {
	h, conn, err := im.engine.Init(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.RegisterFileBuffer(name, data); err != nil {
		return nil, err
	}

	table := TableName(name)
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s AS SELECT * FROM read_csv_auto(%s)",
		engine.QuoteIdent(table), engine.QuoteLiteral(h.Path(name)))
	if err := conn.Exec(ctx, stmt); err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", name, err)
	}
	im.logger.Info("CSV imported", "file", name, "table", table)
	return &Result{Kind: "csv", Table: table, Executed: 1}, nil
}

// TableName derives the import table name from a CSV file name. Unlike
// ingestion it keeps case.
func TableName(file string) string {
	return nonIdentChar.ReplaceAllString(strings.Replace(file, ".csv", "", 1), "_")
}

// Statements splits script on semicolons outside quotes. Comment lines
// leading a statement are removed and statements left empty are dropped.
func Statements(script string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote rune
	)
	flush := func() {
		if s := stripComments(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for _, r := range script {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	return out
}

func stripComments(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	for strings.HasPrefix(stmt, "--") {
		nl := strings.IndexByte(stmt, '\n')
		if nl < 0 {
			return ""
		}
		stmt = strings.TrimSpace(stmt[nl+1:])
	}
	return stmt
}

func preview(stmt string) string {
	r := []rune(stmt)
	if len(r) > previewLen {
		return string(r[:previewLen])
	}
	return stmt
}
