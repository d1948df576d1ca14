// Package features provides shared test utilities for feature handler tests.
package features

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/pith/internal/ai"
	"github.com/leapstack-labs/pith/internal/app"
	"github.com/leapstack-labs/pith/internal/config"
	"github.com/leapstack-labs/pith/internal/engine"
	"github.com/leapstack-labs/pith/internal/ingest"
	"github.com/leapstack-labs/pith/internal/testutil"
	"github.com/leapstack-labs/pith/internal/ui/notifier"
)

// TestFixture holds everything a handler test needs.
type TestFixture struct {
	App      *app.App
	Notifier *notifier.Notifier
	Router   chi.Router
	CacheDir string
}

// FixtureOptions tune SetupTestFixture.
type FixtureOptions struct {
	// Reply is streamed back, chunk by chunk, by the fake model server.
	Reply []string
	// Served lists the model ids the fake server offers. Defaults to the
	// whole catalog.
	Served []string
}

// SetupTestFixture builds an App over in-memory DuckDB and SQLite, with the
// model runtime pointed at a fake OpenAI-compatible server.
func SetupTestFixture(t *testing.T, opts FixtureOptions) *TestFixture {
	t.Helper()

	served := opts.Served
	if served == nil {
		for _, d := range ai.Models {
			served = append(served, d.ID)
		}
	}
	llm := NewModelServer(t, served, opts.Reply)

	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "models")
	a, err := app.New(context.Background(), app.Options{
		Engine: engine.Settings{StagingDir: filepath.Join(dir, "staging"), Threads: 1},
		AI: ai.OpenAIConfig{
			BaseURL:     llm.URL + "/v1",
			CacheDir:    cacheDir,
			Accelerator: config.AcceleratorOff,
		},
		Logger: testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return &TestFixture{
		App:      a,
		Notifier: notifier.New(),
		Router:   chi.NewRouter(),
		CacheDir: cacheDir,
	}
}

// Ingest loads CSV content as a table named after file.
func (f *TestFixture) Ingest(t *testing.T, file, content string) *ingest.Result {
	t.Helper()
	res, err := f.App.Ingest.Ingest(context.Background(), ingest.FromBytes(file, []byte(content)))
	require.NoError(t, err)
	return res
}

// Do sends a request through the router.
func (f *TestFixture) Do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.Router.ServeHTTP(rec, req)
	return rec
}

// DoJSON sends v as a JSON body.
func (f *TestFixture) DoJSON(t *testing.T, method, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return f.Do(method, path, strings.NewReader(string(body)), "application/json")
}

// NewModelServer serves the subset of the OpenAI API the model runtime uses.
func NewModelServer(t *testing.T, models []string, chunks []string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, _ *http.Request) {
		data := make([]map[string]any, len(models))
		for i, id := range models {
			data[i] = map[string]any{"id": id, "object": "model", "owned_by": "local"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"id":"warm","object":"chat.completion","model":%q,"choices":[{"index":0,"message":{"role":"assistant","content":"p"},"finish_reason":"length"}]}`, req.Model)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			payload, _ := json.Marshal(map[string]any{
				"id":      "chunk",
				"object":  "chat.completion.chunk",
				"model":   req.Model,
				"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": c}}},
			})
			_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}
