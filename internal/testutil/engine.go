package testutil

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/pith/internal/engine"
	"github.com/stretchr/testify/require"
)

// MockEngine is an engine.Manager whose database is a sqlmock instance.
type MockEngine struct {
	*engine.Manager
	Mock  sqlmock.Sqlmock
	Opens *atomic.Int32
	Dir   string
}

// NewMockEngine returns a Manager backed by sqlmock with exact query
// matching. The staging directory is a per-test temp dir.
func NewMockEngine(t testing.TB) *MockEngine {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	opens := &atomic.Int32{}
	dir := t.TempDir()
	m := engine.NewManager(engine.Settings{StagingDir: dir},
		engine.WithLogger(NewTestLogger(t)),
		engine.WithOpener(func(context.Context, engine.Settings) (*sql.DB, error) {
			opens.Add(1)
			return db, nil
		}),
	)
	return &MockEngine{Manager: m, Mock: mock, Opens: opens, Dir: dir}
}

// NewDuckEngine returns a Manager backed by a real in-memory DuckDB.
func NewDuckEngine(t testing.TB) *engine.Manager {
	t.Helper()
	m := engine.NewManager(engine.Settings{StagingDir: t.TempDir(), Threads: 1},
		engine.WithLogger(NewTestLogger(t)))
	t.Cleanup(func() { _ = m.Close() })
	return m
}
