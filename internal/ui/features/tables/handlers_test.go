package tables

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leapstack-labs/pith/internal/ingest"
	"github.com/leapstack-labs/pith/internal/schema"
	"github.com/leapstack-labs/pith/internal/state"
	"github.com/leapstack-labs/pith/internal/ui/features"
	"github.com/leapstack-labs/pith/internal/ui/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *features.TestFixture {
	t.Helper()
	f := features.SetupTestFixture(t, features.FixtureOptions{})
	require.NoError(t, SetupRoutes(f.Router, f.App, f.Notifier))
	return f
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(uploadField, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestListAndDescribeTables(t *testing.T) {
	f := setup(t)
	f.Ingest(t, "sales.csv", "region,amount\nEU,10\n")

	rec := f.Do(http.MethodGet, "/api/tables", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []schema.ColumnSchema
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "sales", list[0].Table)
	assert.Equal(t, []string{"region", "amount"}, list[0].Names())

	rec = f.Do(http.MethodGet, "/api/tables/sales", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var one schema.ColumnSchema
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.True(t, one.Columns[1].IsNumeric)

	rec = f.Do(http.MethodGet, "/api/tables/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTablesEmpty(t *testing.T) {
	f := setup(t)
	rec := f.Do(http.MethodGet, "/api/tables", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestIngestUpload(t *testing.T) {
	f := setup(t)
	ch := f.Notifier.Subscribe()
	defer f.Notifier.Unsubscribe(ch)

	body, ct := multipartBody(t, map[string]string{"Q1 Sales.csv": "region,amount\nEU,10\nUS,20\n"})
	rec := f.Do(http.MethodPost, "/api/ingest", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var results []ingest.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "q1_sales", results[0].TableName)
	assert.Equal(t, 2, results[0].RowCount)

	select {
	case e := <-ch:
		assert.Equal(t, notifier.Event{Kind: notifier.TablesChanged, Subject: "q1_sales"}, e)
	case <-time.After(time.Second):
		t.Fatal("no tables event")
	}

	rec = f.Do(http.MethodGet, "/api/ingestions", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []state.Ingestion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "Q1 Sales.csv", history[0].File)
}

func TestIngestErrors(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string]string
		status int
	}{
		{name: "unsupported format", files: map[string]string{"notes.txt": "hello"}, status: http.StatusUnsupportedMediaType},
		{name: "undecodable", files: map[string]string{"bad.json": "{not json"}, status: http.StatusUnprocessableEntity},
		{name: "no files", files: map[string]string{}, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			body, ct := multipartBody(t, tt.files)
			rec := f.Do(http.MethodPost, "/api/ingest", body, ct)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestEventsSSE(t *testing.T) {
	f := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		f.Router.ServeHTTP(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.Notifier.Listeners() == 1 }, time.Second, 5*time.Millisecond)
	f.Notifier.Broadcast(notifier.Event{Kind: notifier.TablesChanged, Subject: "sales"})
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.Contains(t, rec.Body.String(), "datastar-patch-signals")
	assert.Contains(t, rec.Body.String(), `"subject":"sales"`)
	assert.Equal(t, 0, f.Notifier.Listeners())
}
