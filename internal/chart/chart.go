// Package chart validates chart configurations and plans the plots the
// visualization coordinator renders.
package chart

import (
	"fmt"
	"strings"
)

// Type is a chart type.
type Type string

// Chart types.
const (
	Bar     Type = "bar"
	BarH    Type = "bar-h"
	Line    Type = "line"
	Area    Type = "area"
	Scatter Type = "scatter"
	Heatmap Type = "heatmap"
	Tick    Type = "tick"
)

// Types lists every chart type in menu order.
var Types = []Type{Bar, BarH, Line, Area, Scatter, Heatmap, Tick}

var typeNames = map[Type]string{
	Bar:     "Bar Chart",
	BarH:    "Horizontal Bar Chart",
	Line:    "Line Chart",
	Area:    "Area Chart",
	Scatter: "Scatter Plot",
	Heatmap: "Heatmap",
	Tick:    "Tick Plot",
}

// DisplayName returns the user-facing name, or the raw type when unknown.
func (t Type) DisplayName() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return string(t)
}

// Aggregation is how y values are combined per x.
type Aggregation string

// Aggregations.
const (
	Count Aggregation = "count"
	Sum   Aggregation = "sum"
	Avg   Aggregation = "avg"
	Min   Aggregation = "min"
	Max   Aggregation = "max"
)

// Aggregations lists every aggregation.
var Aggregations = []Aggregation{Count, Sum, Avg, Min, Max}

// ParseType validates a chart type name.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := typeNames[t]; !ok {
		return "", fmt.Errorf("unknown chart type %q", s)
	}
	return t, nil
}

// ParseAggregation validates an aggregation name. Empty means count.
func ParseAggregation(s string) (Aggregation, error) {
	a := Aggregation(strings.ToLower(strings.TrimSpace(s)))
	if a == "" {
		return Count, nil
	}
	for _, known := range Aggregations {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown aggregation %q", s)
}

// Config is a user's chart configuration.
type Config struct {
	Type        Type        `json:"chartType"`
	X           string      `json:"xColumn"`
	Y           string      `json:"yColumn,omitempty"`
	Color       string      `json:"colorColumn,omitempty"`
	Aggregation Aggregation `json:"aggregation"`
}

// NumericLookup answers column type questions. *schema.ColumnSchema
// implements it.
type NumericLookup interface {
	IsNumeric(col string) bool
	NumericColumns() []string
}

// Result is the outcome of Validate.
type Result struct {
	Valid bool   `json:"isValid"`
	Error string `json:"error,omitempty"`
}

func invalid(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// RequiresYAxis reports whether a chart type cannot be drawn without y.
func RequiresYAxis(t Type) bool {
	return t == Scatter || t == Heatmap
}

// RequiresNumericY reports whether the combination needs a numeric y.
func RequiresNumericY(t Type, agg Aggregation) bool {
	if t == Scatter || t == Heatmap {
		return true
	}
	return agg == Sum || agg == Avg
}

// Validate checks a configuration against the table's columns. The first
// failing rule wins.
func Validate(cfg Config, cols NumericLookup) Result {
	if cfg.X == "" {
		return invalid("Please select an X-axis column")
	}

	name := cfg.Type.DisplayName()
	if RequiresYAxis(cfg.Type) && cfg.Y == "" {
		return invalid("%s requires a Y-axis column", name)
	}

	yNumeric := cfg.Y != "" && cols != nil && cols.IsNumeric(cfg.Y)
	if RequiresNumericY(cfg.Type, cfg.Aggregation) {
		if cfg.Y == "" {
			return invalid("%s with %s aggregation requires a Y-axis column", name, cfg.Aggregation)
		}
		if !yNumeric {
			return invalid("%s requires a numeric Y-axis column. Please select from: %s", name, available(cols))
		}
	}

	// Shadowed by the numeric-y rule for every known chart type.
	if (cfg.Aggregation == Sum || cfg.Aggregation == Avg) && cfg.Y != "" && !yNumeric {
		return invalid("%s aggregation requires a numeric column. Available numeric columns: %s",
			strings.ToUpper(string(cfg.Aggregation)), available(cols))
	}

	if cfg.Type == Heatmap && cfg.Y == "" {
		return invalid("Heatmap requires both X and Y axis columns")
	}

	return Result{Valid: true}
}

func available(cols NumericLookup) string {
	if cols == nil {
		return "none available"
	}
	if names := cols.NumericColumns(); len(names) > 0 {
		return strings.Join(names, ", ")
	}
	return "none available"
}
