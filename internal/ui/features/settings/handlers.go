package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/pith/internal/app"
	"github.com/leapstack-labs/pith/internal/config"
	"github.com/leapstack-labs/pith/internal/export"
	"github.com/leapstack-labs/pith/internal/prefs"
	"github.com/leapstack-labs/pith/internal/query"
	"github.com/leapstack-labs/pith/internal/ui/features/common"
	"github.com/leapstack-labs/pith/internal/ui/notifier"
)

// PrefsResponse is the body of GET /api/prefs.
type PrefsResponse struct {
	Settings  prefs.Settings `json:"settings"`
	LastModel string         `json:"lastModel"`
}

var contentTypes = map[export.Format]string{
	export.FormatCSV:  "text/csv",
	export.FormatSQL:  "application/sql",
	export.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Handlers serves the settings routes.
type Handlers struct {
	app      *app.App
	notifier *notifier.Notifier
	now      func() time.Time
}

// NewHandlers creates Handlers.
func NewHandlers(a *app.App, notify *notifier.Notifier) *Handlers {
	return &Handlers{app: a, notifier: notify, now: time.Now}
}

// GetPrefs returns the stored preferences, defaults filled in.
func (h *Handlers) GetPrefs(w http.ResponseWriter, r *http.Request) {
	common.WriteJSON(w, http.StatusOK, PrefsResponse{
		Settings:  h.app.Prefs.Settings(r.Context()),
		LastModel: h.app.AI.CurrentModel(),
	})
}

// SavePrefs writes every settings toggle.
func (h *Handlers) SavePrefs(w http.ResponseWriter, r *http.Request) {
	st := prefs.DefaultSettings()
	if err := common.DecodeJSON(w, r, &st, common.MaxJSONBody); err != nil {
		common.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Prefs.SaveSettings(r.Context(), st); err != nil {
		common.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, st)
}

// SetPref writes one well-known key. The model key goes through model
// selection so unknown ids are rejected.
func (h *Handlers) SetPref(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !prefs.IsKnown(key) {
		common.WriteError(w, http.StatusNotFound, fmt.Errorf("unknown preference %q", key))
		return
	}

	var raw json.RawMessage
	if err := common.DecodeJSON(w, r, &raw, common.MaxJSONBody); err != nil {
		common.WriteError(w, http.StatusBadRequest, err)
		return
	}

	if key == prefs.KeyLastModel {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			common.WriteError(w, http.StatusBadRequest, fmt.Errorf("%s must be a string", key))
			return
		}
		if err := h.app.AI.SetModel(r.Context(), id); err != nil {
			common.WriteError(w, http.StatusBadRequest, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		common.WriteError(w, http.StatusBadRequest, fmt.Errorf("%s must be a boolean", key))
		return
	}
	if err := h.app.Prefs.Set(r.Context(), key, v); err != nil {
		common.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export downloads tables. Query parameters: format (csv, sql or xlsx),
// table (required for csv, optional otherwise) and compress.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err)
		return
	}
	table := q.Get("table")
	if format == export.FormatCSV && table == "" {
		common.WriteError(w, http.StatusBadRequest, errors.New("csv export needs a table"))
		return
	}
	compress, _ := strconv.ParseBool(q.Get("compress"))

	var tables []string
	if table != "" {
		tables = []string{table}
	}

	// Render fully before writing headers so failures still get an error
	// status.
	var buf bytes.Buffer
	var out io.Writer = &buf
	var zw io.WriteCloser
	if compress {
		if zw, err = export.Compress(&buf, 0); err != nil {
			common.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		out = zw
	}

	switch format {
	case export.FormatCSV:
		err = h.app.Export.CSV(r.Context(), out, table)
	case export.FormatXLSX:
		err = h.app.Export.XLSX(r.Context(), out, tables...)
	default:
		err = h.app.Export.SQLDump(r.Context(), out, tables...)
	}
	if err == nil && zw != nil {
		err = zw.Close()
	}
	if err != nil {
		var qe *query.QueryExecutionError
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, export.ErrNoTables):
			status = http.StatusNotFound
		case errors.As(err, &qe):
			status = http.StatusBadRequest
		}
		common.WriteError(w, status, err)
		return
	}

	name := export.FileName(format, table, h.now())
	contentType := contentTypes[format]
	if compress {
		name += export.CompressedExt
		contentType = "application/zstd"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Import replays an uploaded .sql or .csv file, optionally zstd-compressed.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxFileSize)
	f, fh, err := r.FormFile("file")
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid upload: %w", err))
		return
	}
	defer f.Close()

	res, err := h.app.Import.File(r.Context(), fh.Filename, f)
	if err != nil {
		common.WriteError(w, http.StatusUnprocessableEntity, err)
		return
	}
	h.notifier.Broadcast(notifier.Event{Kind: notifier.TablesChanged, Subject: res.Table})
	common.WriteJSON(w, http.StatusOK, res)
}
