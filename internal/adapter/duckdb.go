package adapter

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/marcboeker/go-duckdb"
)

func init() {
	Register("duckdb", OpenDuckDB)
}

// OpenDuckDB opens an embedded DuckDB database. Every connection the pool
// creates runs the boot statements derived from cfg first.
func OpenDuckDB(ctx context.Context, cfg Config) (*sql.DB, error) {
	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}

	boot := BootStatements(cfg)
	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		for _, stmt := range boot {
			if _, err := execer.ExecContext(ctx, stmt, nil); err != nil {
				return fmt.Errorf("failed to run %q: %w", stmt, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return db, nil
}

// BootStatements returns the SET statements applied to each new DuckDB
// connection, in order.
func BootStatements(cfg Config) []string {
	var stmts []string
	if cfg.Threads > 0 {
		stmts = append(stmts, fmt.Sprintf("SET threads = %d", cfg.Threads))
	}
	if cfg.MemoryLimit != "" {
		stmts = append(stmts, fmt.Sprintf("SET memory_limit = '%s'", escapeLiteral(cfg.MemoryLimit)))
	}
	if cfg.SearchPath != "" {
		stmts = append(stmts, fmt.Sprintf("SET file_search_path = '%s'", escapeLiteral(cfg.SearchPath)))
	}
	return stmts
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
