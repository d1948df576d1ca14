package charts

import (
	"errors"
	"net/http"

	"github.com/leapstack-labs/pith/internal/app"
	"github.com/leapstack-labs/pith/internal/chart"
	"github.com/leapstack-labs/pith/internal/schema"
	"github.com/leapstack-labs/pith/internal/ui/features/common"
)

// ChartRequest names a table and a chart configuration for it.
type ChartRequest struct {
	Table  string       `json:"table"`
	Config chart.Config `json:"config"`
	// WithData also runs the plot SQL and returns its rows.
	WithData bool `json:"withData"`
}

// PlanResponse is a resolved plot spec and, when asked for, its data.
type PlanResponse struct {
	Spec chart.PlotSpec `json:"spec"`
	Data any            `json:"data,omitempty"`
}

// TypeInfo describes one chart type for pickers.
type TypeInfo struct {
	Type      chart.Type `json:"type"`
	Name      string     `json:"name"`
	RequiresY bool       `json:"requiresY"`
	// NumericYOnly is set when y must be numeric whatever the aggregation.
	NumericYOnly bool `json:"numericY"`
}

// Handlers serves the chart routes.
type Handlers struct {
	app *app.App
}

// NewHandlers creates Handlers.
func NewHandlers(a *app.App) *Handlers {
	return &Handlers{app: a}
}

// Types lists the supported chart types.
func (h *Handlers) Types(w http.ResponseWriter, _ *http.Request) {
	out := make([]TypeInfo, 0, len(chart.Types))
	for _, t := range chart.Types {
		out = append(out, TypeInfo{
			Type:         t,
			Name:         t.DisplayName(),
			RequiresY:    chart.RequiresYAxis(t),
			NumericYOnly: chart.RequiresNumericY(t, chart.Count),
		})
	}
	common.WriteJSON(w, http.StatusOK, out)
}

// Validate checks a configuration against the table's schema. Invalid
// configurations are a successful response with isValid false.
func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request) {
	req, sch, ok := h.read(w, r)
	if !ok {
		return
	}
	common.WriteJSON(w, http.StatusOK, chart.Validate(req.Config, sch))
}

// Plan validates the configuration and returns its plot spec with the
// colour legend resolved.
func (h *Handlers) Plan(w http.ResponseWriter, r *http.Request) {
	req, sch, ok := h.read(w, r)
	if !ok {
		return
	}
	if res := chart.Validate(req.Config, sch); !res.Valid {
		common.WriteError(w, http.StatusUnprocessableEntity, errors.New(res.Error))
		return
	}

	plot, err := h.app.Charts.Plan(req.Config, req.Table, sch)
	if err != nil {
		common.WriteError(w, http.StatusUnprocessableEntity, err)
		return
	}
	el, err := chart.Resolve(r.Context(), plot)
	if err != nil {
		common.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	resp := PlanResponse{Spec: *el.Spec}
	if req.WithData {
		table, err := h.app.Visual.Query(r.Context(), el.Spec.SQL)
		if err != nil {
			common.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		resp.Data = table
	}
	common.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handlers) read(w http.ResponseWriter, r *http.Request) (ChartRequest, *schema.ColumnSchema, bool) {
	var req ChartRequest
	if err := common.DecodeJSON(w, r, &req, common.MaxJSONBody); err != nil {
		common.WriteError(w, http.StatusBadRequest, err)
		return req, nil, false
	}
	if req.Table == "" {
		common.WriteError(w, http.StatusBadRequest, errors.New("table is required"))
		return req, nil, false
	}
	sch, err := h.app.Schema.Describe(r.Context(), req.Table)
	if err != nil {
		common.WriteError(w, http.StatusNotFound, err)
		return req, nil, false
	}
	return req, sch, true
}
