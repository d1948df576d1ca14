package settings

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/leapstack-labs/pith/internal/export"
	"github.com/leapstack-labs/pith/internal/importer"
	"github.com/leapstack-labs/pith/internal/prefs"
	"github.com/leapstack-labs/pith/internal/ui/features"
	"github.com/leapstack-labs/pith/internal/ui/notifier"
)

func setup(t *testing.T) *features.TestFixture {
	t.Helper()
	f := features.SetupTestFixture(t, features.FixtureOptions{})
	require.NoError(t, SetupRoutes(f.Router, f.App, f.Notifier))
	return f
}

func upload(t *testing.T, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestPrefs(t *testing.T) {
	f := setup(t)

	rec := f.Do(http.MethodGet, "/api/prefs", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got PrefsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, prefs.DefaultSettings(), got.Settings)
	assert.Equal(t, "Llama-3.2-3B-Instruct-q4f32_1-MLC", got.LastModel)

	rec = f.DoJSON(t, http.MethodPut, "/api/prefs", prefs.Settings{Notifications: false, Autosave: true, Analytics: true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.Do(http.MethodGet, "/api/prefs", nil, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, prefs.Settings{Notifications: false, Autosave: true, Analytics: true}, got.Settings)
}

func TestSetPref(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		body   any
		status int
	}{
		{name: "toggle", key: prefs.KeyAnalytics, body: true, status: http.StatusNoContent},
		{name: "toggle needs bool", key: prefs.KeyAutosave, body: "yes", status: http.StatusBadRequest},
		{name: "model", key: prefs.KeyLastModel, body: "Phi-3.5-mini-instruct-q4f16_1-MLC", status: http.StatusNoContent},
		{name: "unknown model", key: prefs.KeyLastModel, body: "gpt-9", status: http.StatusBadRequest},
		{name: "model needs string", key: prefs.KeyLastModel, body: 3, status: http.StatusBadRequest},
		{name: "unknown key", key: "theme", body: "dark", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			rec := f.DoJSON(t, http.MethodPut, "/api/prefs/"+tt.key, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	t.Run("model is persisted", func(t *testing.T) {
		f := setup(t)
		rec := f.DoJSON(t, http.MethodPut, "/api/prefs/"+prefs.KeyLastModel, "Phi-3.5-mini-instruct-q4f16_1-MLC")
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "Phi-3.5-mini-instruct-q4f16_1-MLC", f.App.Prefs.String(t.Context(), prefs.KeyLastModel, ""))
	})
}

func TestExport(t *testing.T) {
	f := setup(t)
	f.Ingest(t, "sales.csv", "region,amount\nEU,10\nUS,20\n")

	t.Run("csv", func(t *testing.T) {
		rec := f.Do(http.MethodGet, "/api/export?format=csv&table=sales", nil, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="sales_export.csv"`)
		assert.Equal(t, "region,amount\n\"EU\",10\n\"US\",20\n", rec.Body.String())
	})

	t.Run("csv needs table", func(t *testing.T) {
		rec := f.Do(http.MethodGet, "/api/export?format=csv", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad format", func(t *testing.T) {
		rec := f.Do(http.MethodGet, "/api/export?format=parquet", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("sql", func(t *testing.T) {
		rec := f.Do(http.MethodGet, "/api/export?format=sql", nil, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := rec.Body.String()
		assert.True(t, strings.HasPrefix(body, export.Banner))
		assert.Contains(t, body, `INSERT INTO "sales" VALUES ('EU', 10);`)
		assert.Regexp(t, `filename="pith_export_\d+\.sql"`, rec.Header().Get("Content-Disposition"))
	})

	t.Run("xlsx", func(t *testing.T) {
		rec := f.Do(http.MethodGet, "/api/export?format=xlsx&table=sales", nil, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		xf, err := excelize.OpenReader(rec.Body)
		require.NoError(t, err)
		defer xf.Close()
		v, err := xf.GetCellValue("sales", "A2")
		require.NoError(t, err)
		assert.Equal(t, "EU", v)
	})

	t.Run("compressed", func(t *testing.T) {
		rec := f.Do(http.MethodGet, "/api/export?format=sql&compress=true", nil, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/zstd", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), ".sql.zst")

		dec, err := zstd.NewReader(rec.Body)
		require.NoError(t, err)
		defer dec.Close()
		plain, err := io.ReadAll(dec)
		require.NoError(t, err)
		assert.Contains(t, string(plain), `CREATE TABLE "sales"`)
	})

	t.Run("missing table", func(t *testing.T) {
		rec := f.Do(http.MethodGet, "/api/export?format=sql&table=nope", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExportEmpty(t *testing.T) {
	f := setup(t)
	rec := f.Do(http.MethodGet, "/api/export?format=sql", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImport(t *testing.T) {
	f := setup(t)
	ch := f.Notifier.Subscribe()
	defer f.Notifier.Unsubscribe(ch)

	body, ct := upload(t, "people.csv", []byte("name,age\nana,31\nbo,42\n"))
	rec := f.Do(http.MethodPost, "/api/import", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res importer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, importer.Result{Kind: "csv", Table: "people", Executed: 1}, res)

	select {
	case e := <-ch:
		assert.Equal(t, notifier.Event{Kind: notifier.TablesChanged, Subject: "people"}, e)
	case <-time.After(time.Second):
		t.Fatal("no tables event")
	}

	tables, err := f.App.Schema.ListTables(t.Context())
	require.NoError(t, err)
	assert.Contains(t, tables, "people")

	dump := "-- dump\nCREATE TABLE t (a INTEGER);\nINSERT INTO t VALUES (1);\nINSERT INTO missing VALUES (2);\n"
	body, ct = upload(t, "backup.sql", []byte(dump))
	rec = f.Do(http.MethodPost, "/api/import", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, importer.Result{Kind: "sql", Executed: 2, Failed: 1}, res)

	body, ct = upload(t, "notes.txt", []byte("hello"))
	rec = f.Do(http.MethodPost, "/api/import", body, ct)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
