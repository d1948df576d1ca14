package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type columns map[string]bool

func (c columns) IsNumeric(col string) bool { return c[col] }

func (c columns) NumericColumns() []string {
	var out []string
	for _, name := range []string{"amount", "units", "price"} {
		if c[name] {
			out = append(out, name)
		}
	}
	return out
}

var salesCols = columns{"region": false, "amount": true, "units": true}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		cols    NumericLookup
		wantErr string
	}{
		{
			name:    "missing x",
			cfg:     Config{Type: Bar, Aggregation: Count},
			cols:    salesCols,
			wantErr: "Please select an X-axis column",
		},
		{
			name:    "scatter without y",
			cfg:     Config{Type: Scatter, X: "amount", Aggregation: Count},
			cols:    salesCols,
			wantErr: "Scatter Plot requires a Y-axis column",
		},
		{
			name:    "heatmap without y",
			cfg:     Config{Type: Heatmap, X: "region", Aggregation: Count},
			cols:    salesCols,
			wantErr: "Heatmap requires a Y-axis column",
		},
		{
			name:    "sum without y",
			cfg:     Config{Type: Bar, X: "region", Aggregation: Sum},
			cols:    salesCols,
			wantErr: "Bar Chart with sum aggregation requires a Y-axis column",
		},
		{
			name:    "avg on text column",
			cfg:     Config{Type: Line, X: "region", Y: "region", Aggregation: Avg},
			cols:    salesCols,
			wantErr: "Line Chart requires a numeric Y-axis column. Please select from: amount, units",
		},
		{
			name:    "scatter on text y without numeric columns",
			cfg:     Config{Type: Scatter, X: "region", Y: "region", Aggregation: Count},
			cols:    columns{"region": false},
			wantErr: "Scatter Plot requires a numeric Y-axis column. Please select from: none available",
		},
		{
			name: "bar count without y",
			cfg:  Config{Type: Bar, X: "region", Aggregation: Count},
			cols: salesCols,
		},
		{
			name: "horizontal bar sum",
			cfg:  Config{Type: BarH, X: "region", Y: "amount", Aggregation: Sum},
			cols: salesCols,
		},
		{
			name: "min on text column is allowed",
			cfg:  Config{Type: Bar, X: "region", Y: "region", Aggregation: Min},
			cols: salesCols,
		},
		{
			name: "heatmap numeric y",
			cfg:  Config{Type: Heatmap, X: "region", Y: "units", Aggregation: Count},
			cols: salesCols,
		},
		{
			name: "tick without y",
			cfg:  Config{Type: Tick, X: "amount", Aggregation: Count},
			cols: salesCols,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.cfg, tt.cols)
			if tt.wantErr == "" {
				assert.True(t, got.Valid, got.Error)
				assert.Empty(t, got.Error)
				return
			}
			assert.False(t, got.Valid)
			assert.Equal(t, tt.wantErr, got.Error)
		})
	}
}

func TestValidate_AreaSumWording(t *testing.T) {
	got := Validate(Config{Type: Area, X: "region", Y: "region", Aggregation: Sum}, salesCols)
	assert.Equal(t, "Area Chart requires a numeric Y-axis column. Please select from: amount, units", got.Error)
}

func TestRequiresHelpers(t *testing.T) {
	assert.True(t, RequiresYAxis(Scatter))
	assert.True(t, RequiresYAxis(Heatmap))
	assert.False(t, RequiresYAxis(Bar))

	assert.True(t, RequiresNumericY(Scatter, Count))
	assert.True(t, RequiresNumericY(Bar, Sum))
	assert.True(t, RequiresNumericY(Line, Avg))
	assert.False(t, RequiresNumericY(Bar, Min))
	assert.False(t, RequiresNumericY(Tick, Count))
}

func TestParse(t *testing.T) {
	typ, err := ParseType("Bar-H")
	assert.NoError(t, err)
	assert.Equal(t, BarH, typ)
	assert.Equal(t, "Horizontal Bar Chart", typ.DisplayName())

	_, err = ParseType("pie")
	assert.Error(t, err)

	agg, err := ParseAggregation("")
	assert.NoError(t, err)
	assert.Equal(t, Count, agg)

	_, err = ParseAggregation("median")
	assert.Error(t, err)
}
