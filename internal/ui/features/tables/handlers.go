package tables

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/pith/internal/app"
	"github.com/leapstack-labs/pith/internal/config"
	"github.com/leapstack-labs/pith/internal/ingest"
	"github.com/leapstack-labs/pith/internal/schema"
	"github.com/leapstack-labs/pith/internal/ui/features/common"
	"github.com/leapstack-labs/pith/internal/ui/notifier"
	"github.com/starfederation/datastar-go/datastar"
)

// uploadField is the multipart field carrying files.
const uploadField = "file"

// Handlers serves the table routes.
type Handlers struct {
	app      *app.App
	notifier *notifier.Notifier
}

// NewHandlers creates Handlers.
func NewHandlers(a *app.App, notify *notifier.Notifier) *Handlers {
	return &Handlers{app: a, notifier: notify}
}

// ListTables returns every table with its columns.
func (h *Handlers) ListTables(w http.ResponseWriter, r *http.Request) {
	names, err := h.app.Schema.ListTables(r.Context())
	if err != nil {
		common.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]*schema.ColumnSchema, 0, len(names))
	for _, name := range names {
		s, err := h.app.Schema.Describe(r.Context(), name)
		if err != nil {
			common.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, s)
	}
	common.WriteJSON(w, http.StatusOK, out)
}

// DescribeTable returns one table's columns.
func (h *Handlers) DescribeTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s, err := h.app.Schema.Describe(r.Context(), name)
	if err != nil {
		common.WriteError(w, http.StatusNotFound, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, s)
}

// Ingest loads every uploaded file. Files are processed in order and the
// first failure stops the batch.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		common.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid upload: %w", err))
		return
	}
	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		common.WriteError(w, http.StatusBadRequest, errors.New("no files uploaded"))
		return
	}

	results := make([]*ingest.Result, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			common.WriteError(w, http.StatusBadRequest, err)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			common.WriteError(w, http.StatusBadRequest, err)
			return
		}

		res, err := h.app.Ingest.Ingest(r.Context(), ingest.FromBytes(fh.Filename, data))
		if err != nil {
			var unsupported *ingest.UnsupportedFormatError
			if errors.As(err, &unsupported) {
				common.WriteError(w, http.StatusUnsupportedMediaType, err)
				return
			}
			common.WriteError(w, http.StatusUnprocessableEntity, err)
			return
		}
		results = append(results, res)
		h.notifier.Broadcast(notifier.Event{Kind: notifier.TablesChanged, Subject: res.TableName})
	}
	common.WriteJSON(w, http.StatusOK, results)
}

// Ingestions returns the ingestion history, newest first.
func (h *Handlers) Ingestions(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.State.ListIngestions(r.Context())
	if err != nil {
		common.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, list)
}

// eventSignals is patched into the browser on every event.
type eventSignals struct {
	Event notifier.Event `json:"event"`
}

// EventsSSE streams notifier events as datastar signal patches until the
// client disconnects.
func (h *Handlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	ch := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := sse.MarshalAndPatchSignals(eventSignals{Event: e}); err != nil {
				return
			}
		}
	}
}
