package chart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/pith/internal/engine"
)

// Plot layout constants.
const (
	Width        = 650
	Height       = 450
	MarginLeft   = 50
	MarginBottom = 40

	// MaxLegendItems caps the colour domain.
	MaxLegendItems = 10
	// HeatmapBins is the bin count per numeric heatmap axis.
	HeatmapBins = 20

	defaultFill = "steelblue"
)

// Palette is the categorical colour range.
var Palette = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f",
	"#edc948", "#b07aa1", "#ff9da7", "#9c755f", "#bab0ac",
}

// LegendItem is one entry of the colour legend.
type LegendItem struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// PlotSpec is a declarative plot in the coordinator's JSON spec shape. Channel
// values are a column name, a constant, or a transform such as
// {"count": null}, {"sum": "amount"} or {"bin": "price"}.
type PlotSpec struct {
	Mark     string         `json:"mark"`
	Table    string         `json:"from"`
	Channels map[string]any `json:"channels"`

	XLabel string `json:"xLabel,omitempty"`
	YLabel string `json:"yLabel,omitempty"`

	ColorDomain      []string     `json:"colorDomain,omitempty"`
	ColorRange       []string     `json:"colorRange,omitempty"`
	ColorLegendTitle string       `json:"colorLegend,omitempty"`
	Legend           []LegendItem `json:"legend,omitempty"`

	Width        int  `json:"width"`
	Height       int  `json:"height"`
	YGrid        bool `json:"yGrid"`
	MarginLeft   int  `json:"marginLeft"`
	MarginBottom int  `json:"marginBottom"`

	// SQL computes the plotted data for renderers without a coordinator.
	SQL string `json:"sql"`
}

// ErrInvalidConfig wraps validation failures from Plan.
var ErrInvalidConfig = errors.New("invalid chart configuration")

// Plan translates a valid configuration into a PlotSpec. The colour legend
// is left empty; see ColorDomainSQL and WithColorDomain.
func Plan(cfg Config, table string, cols NumericLookup) (*PlotSpec, error) {
	if cfg.Aggregation == "" {
		cfg.Aggregation = Count
	}
	if res := Validate(cfg, cols); !res.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, res.Error)
	}

	isNumeric := func(col string) bool { return col != "" && cols != nil && cols.IsNumeric(col) }
	paint := defaultFill
	if cfg.Color != "" {
		paint = cfg.Color
	}
	aggLabel := "Count"
	if cfg.Aggregation != Count {
		aggLabel = fmt.Sprintf("%s(%s)", cfg.Aggregation, cfg.Y)
	}
	agg, aggSQL := aggregate(cfg.Aggregation, cfg.Y, isNumeric(cfg.Y))

	spec := &PlotSpec{
		Table:        table,
		Width:        Width,
		Height:       Height,
		YGrid:        true,
		MarginLeft:   MarginLeft,
		MarginBottom: MarginBottom,
	}

	switch cfg.Type {
	case Bar:
		spec.Mark = "rectY"
		spec.Channels = map[string]any{"x": cfg.X, "y": agg, "fill": paint}
		spec.XLabel, spec.YLabel = cfg.X, aggLabel
		spec.SQL = groupedSQL(table, cfg.X, "x", aggSQL, "y", cfg.Color)
	case BarH:
		spec.Mark = "rectX"
		spec.Channels = map[string]any{"y": cfg.X, "x": agg, "fill": paint}
		spec.XLabel, spec.YLabel = aggLabel, cfg.X
		spec.SQL = groupedSQL(table, cfg.X, "y", aggSQL, "x", cfg.Color)
	case Line:
		spec.Mark = "lineY"
		spec.Channels = map[string]any{"x": cfg.X, "y": agg, "stroke": paint}
		spec.XLabel, spec.YLabel = cfg.X, aggLabel
		spec.SQL = groupedSQL(table, cfg.X, "x", aggSQL, "y", cfg.Color)
	case Area:
		spec.Mark = "areaY"
		spec.Channels = map[string]any{"x": cfg.X, "y": agg, "fill": paint, "fillOpacity": 0.6}
		spec.XLabel, spec.YLabel = cfg.X, aggLabel
		spec.SQL = groupedSQL(table, cfg.X, "x", aggSQL, "y", cfg.Color)
	case Scatter:
		spec.Mark = "dot"
		spec.Channels = map[string]any{"x": cfg.X, "y": cfg.Y, "fill": paint, "r": 3, "opacity": 0.6}
		spec.XLabel, spec.YLabel = cfg.X, cfg.Y
		spec.SQL = rawSQL(table, cfg.Color, cfg.X, "x", cfg.Y, "y")
	case Heatmap:
		spec.Mark = "rect"
		spec.Channels = map[string]any{
			"x":    binned(cfg.X, isNumeric(cfg.X)),
			"y":    binned(cfg.Y, isNumeric(cfg.Y)),
			"fill": map[string]any{"count": nil},
		}
		spec.XLabel, spec.YLabel = cfg.X, cfg.Y
		spec.ColorLegendTitle = "Count"
		spec.SQL = heatmapSQL(table, cfg.X, isNumeric(cfg.X), cfg.Y, isNumeric(cfg.Y))
	case Tick:
		spec.Mark = "tickX"
		spec.Channels = map[string]any{"x": cfg.X, "stroke": paint}
		spec.XLabel = cfg.X
		spec.SQL = rawSQL(table, cfg.Color, cfg.X, "x")
	default:
		return nil, fmt.Errorf("%w: unknown chart type %q", ErrInvalidConfig, cfg.Type)
	}
	return spec, nil
}

// aggregate returns the channel transform and SQL expression for y. Counting
// is used for non-numeric columns unless the aggregation is min or max.
func aggregate(agg Aggregation, y string, numeric bool) (any, string) {
	if agg == Count || agg == "" || (!numeric && agg != Min && agg != Max) {
		return map[string]any{"count": nil}, "count(*)"
	}
	return map[string]any{string(agg): y}, fmt.Sprintf("%s(%s)", agg, engine.QuoteIdent(y))
}

func binned(col string, numeric bool) any {
	if numeric {
		return map[string]any{"bin": col}
	}
	return col
}

func groupedSQL(table, key, keyAlias, aggSQL, aggAlias, color string) string {
	sel := []string{fmt.Sprintf("%s AS %s", engine.QuoteIdent(key), keyAlias)}
	group := "1"
	if color != "" {
		sel = append(sel, fmt.Sprintf("%s AS color", engine.QuoteIdent(color)))
		group = "1, 2"
	}
	sel = append(sel, fmt.Sprintf("%s AS %s", aggSQL, aggAlias))
	return fmt.Sprintf("SELECT %s FROM %s GROUP BY %s ORDER BY %s",
		strings.Join(sel, ", "), engine.QuoteIdent(table), group, group)
}

// rawSQL selects column/alias pairs and the optional colour column.
func rawSQL(table, color string, pairs ...string) string {
	var sel []string
	for i := 0; i+1 < len(pairs); i += 2 {
		sel = append(sel, fmt.Sprintf("%s AS %s", engine.QuoteIdent(pairs[i]), pairs[i+1]))
	}
	if color != "" {
		sel = append(sel, fmt.Sprintf("%s AS color", engine.QuoteIdent(color)))
	}
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d", strings.Join(sel, ", "), engine.QuoteIdent(table), MaxDataPoints)
}

// MaxDataPoints caps rows fetched for unaggregated marks.
const MaxDataPoints = 10000

func heatmapSQL(table, x string, xNumeric bool, y string, yNumeric bool) string {
	qx, qy := engine.QuoteIdent(x), engine.QuoteIdent(y)
	if !xNumeric && !yNumeric {
		return fmt.Sprintf("SELECT %s AS x, %s AS y, count(*) AS fill FROM %s GROUP BY 1, 2 ORDER BY 1, 2",
			qx, qy, engine.QuoteIdent(table))
	}

	var bounds []string
	xExpr, yExpr := qx, qy
	if xNumeric {
		bounds = append(bounds, boundsSQL(qx, "x"))
		xExpr = binExpr(qx, "x")
	}
	if yNumeric {
		bounds = append(bounds, boundsSQL(qy, "y"))
		yExpr = binExpr(qy, "y")
	}
	return fmt.Sprintf("WITH b AS (SELECT %s FROM %s) SELECT %s AS x, %s AS y, count(*) AS fill FROM %s, b GROUP BY 1, 2 ORDER BY 1, 2",
		strings.Join(bounds, ", "), engine.QuoteIdent(table), xExpr, yExpr, engine.QuoteIdent(table))
}

func boundsSQL(col, axis string) string {
	return fmt.Sprintf("min(%[1]s) AS lo_%[2]s, (max(%[1]s) - min(%[1]s)) / %[3]d AS step_%[2]s", col, axis, HeatmapBins)
}

func binExpr(col, axis string) string {
	return fmt.Sprintf("CASE WHEN b.step_%[2]s = 0 THEN %[1]s ELSE b.lo_%[2]s + floor((%[1]s - b.lo_%[2]s) / b.step_%[2]s) * b.step_%[2]s END", col, axis)
}

// ColorDomainSQL selects up to MaxLegendItems distinct values of the colour
// column. ok is false when the chart has no colour legend.
func ColorDomainSQL(cfg Config, table string) (sql string, ok bool) {
	if cfg.Color == "" || cfg.Type == Heatmap {
		return "", false
	}
	return fmt.Sprintf("SELECT DISTINCT %s FROM %s ORDER BY 1 LIMIT %d",
		engine.QuoteIdent(cfg.Color), engine.QuoteIdent(table), MaxLegendItems), true
}

// Legend pairs domain values with palette colours. Empty values are
// labelled "null".
func Legend(domain []string) []LegendItem {
	items := make([]LegendItem, len(domain))
	for i, label := range domain {
		if label == "" {
			label = "null"
		}
		items[i] = LegendItem{Label: label, Color: Palette[i%len(Palette)]}
	}
	return items
}

// WithColorDomain pins the plot's colour scale to domain and fills the
// legend.
func (p *PlotSpec) WithColorDomain(domain []string) *PlotSpec {
	p.ColorDomain = domain
	p.ColorRange = Palette
	p.Legend = Legend(domain)
	return p
}
