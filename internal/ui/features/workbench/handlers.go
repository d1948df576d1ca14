package workbench

import (
	"errors"
	"net/http"

	"github.com/leapstack-labs/pith/internal/app"
	"github.com/leapstack-labs/pith/internal/query"
	"github.com/leapstack-labs/pith/internal/ui/features/common"
)

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	SQL string `json:"sql"`
}

// QueryResponse carries a normalized result.
type QueryResponse struct {
	Rows      []query.Record `json:"rows"`
	Columns   []string       `json:"columns"`
	ElapsedMS int64          `json:"elapsedMs"`
}

// Handlers serves the SQL routes.
type Handlers struct {
	app *app.App
}

// NewHandlers creates Handlers.
func NewHandlers(a *app.App) *Handlers {
	return &Handlers{app: a}
}

// Query runs one statement through the normalizer.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := common.DecodeJSON(w, r, &req, common.MaxJSONBody); err != nil {
		common.WriteError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.app.Queries.Run(r.Context(), query.Query{SQL: req.SQL})
	if err != nil {
		var qe *query.QueryExecutionError
		if errors.As(err, &qe) {
			common.WriteError(w, http.StatusBadRequest, err)
			return
		}
		common.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, QueryResponse{
		Rows:      res.Rows,
		Columns:   res.Columns,
		ElapsedMS: res.ElapsedMillis(),
	})
}
