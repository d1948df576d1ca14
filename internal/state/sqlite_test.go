package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenAndMigrate(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Close())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	_, _, err := store.GetPref(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, store.SetPref(ctx, "k", "v"))
	assert.Error(t, store.Migrate(ctx))
	_, err = store.LastIngestion(ctx, "t")
	assert.Error(t, err)
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"preferences", "ingestions"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s should exist", table)
		_ = rows.Close()
	}

	version, err := store.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Re-running is a no-op.
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := OpenAndMigrate(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.SetPref(context.Background(), "pith-autosave", "false"))
	require.NoError(t, store.Close())

	reopened, err := OpenAndMigrate(path, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	v, ok, err := reopened.GetPref(context.Background(), "pith-autosave")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", v)
	assert.Equal(t, path, reopened.Path())
}

func TestSQLiteStore_Prefs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, ok, err := store.GetPref(ctx, "pith-ai-last-model")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetPref(ctx, "pith-ai-last-model", `"Llama-3.2-1B-Instruct-q4f32_1-MLC"`))
	require.NoError(t, store.SetPref(ctx, "pith-ai-last-model", `"Phi-3.5-mini-instruct-q4f16_1-MLC"`))
	require.NoError(t, store.SetPref(ctx, "pith-analytics", "true"))

	v, ok, err := store.GetPref(ctx, "pith-ai-last-model")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"Phi-3.5-mini-instruct-q4f16_1-MLC"`, v)

	all, err := store.ListPrefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"pith-ai-last-model": `"Phi-3.5-mini-instruct-q4f16_1-MLC"`,
		"pith-analytics":     "true",
	}, all)
}

func TestSQLiteStore_Ingestions(t *testing.T) {
	tests := []struct {
		name    string
		records []Ingestion
		table   string
		want    string
	}{
		{
			name:  "no history",
			table: "sales",
			want:  "",
		},
		{
			name: "latest wins",
			records: []Ingestion{
				{Table: "sales", File: "sales.csv", Fingerprint: "aaaa", RowCount: 3, IngestedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
				{Table: "sales", File: "sales.csv", Fingerprint: "bbbb", RowCount: 4, IngestedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
				{Table: "other", File: "other.json", Fingerprint: "cccc", RowCount: 1, IngestedAt: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)},
			},
			table: "sales",
			want:  "bbbb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			ctx := context.Background()
			for _, rec := range tt.records {
				require.NoError(t, store.RecordIngestion(ctx, rec))
			}

			last, err := store.LastIngestion(ctx, tt.table)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, last)
				return
			}
			require.NotNil(t, last)
			assert.Equal(t, tt.want, last.Fingerprint)
			assert.Equal(t, "file", last.Source)
			assert.NotEmpty(t, last.ID)

			all, err := store.ListIngestions(ctx)
			require.NoError(t, err)
			assert.Len(t, all, len(tt.records))
			assert.Equal(t, "other", all[0].Table, "newest entry first")
		})
	}
}
