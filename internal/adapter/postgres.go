package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

func init() {
	Register("postgres", OpenPostgres)
}

// OpenPostgres opens a Postgres database through pgx's database/sql driver.
// cfg.Path, when set, is used verbatim as the connection string.
func OpenPostgres(ctx context.Context, cfg Config) (*sql.DB, error) {
	dsn := cfg.Path
	if dsn == "" {
		dsn = BuildPostgresDSN(cfg)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// BuildPostgresDSN builds a key/value connection string from cfg.
// sslmode defaults to disable for local sources.
func BuildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	dbname := cfg.Database
	if dbname == "" {
		dbname = "postgres"
	}
	sslmode := "disable"
	if v, ok := cfg.Options["sslmode"]; ok && v != "" {
		sslmode = v
	}

	parts := []string{
		fmt.Sprintf("host=%s", host),
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("dbname=%s", dbname),
		fmt.Sprintf("sslmode=%s", sslmode),
	}
	if cfg.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}

	extra := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		if k != "sslmode" {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		parts = append(parts, fmt.Sprintf("%s=%s", k, cfg.Options[k]))
	}

	return strings.Join(parts, " ")
}
