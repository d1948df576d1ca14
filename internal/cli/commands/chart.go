package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/pith/internal/chart"
	"github.com/leapstack-labs/pith/internal/cli/output"
	"github.com/spf13/cobra"
)

// ChartOptions holds the chart configuration flags shared by validate and plan.
type ChartOptions struct {
	Table       string
	Type        string
	X           string
	Y           string
	Color       string
	Aggregation string
	Data        bool
	Limit       int
}

// NewChartCommand creates the chart command.
func NewChartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Validate and plan charts",
		Long: `Check chart configurations against a table and produce plot specs.

A plot spec names the mark, its channel bindings and the SQL that feeds it.
Use --data to run that SQL and print the rows the chart would draw.`,
		Example: `  # List chart types
  pith chart types

  # Check a configuration
  pith chart validate --table sales --type bar --x region --y amount --agg sum

  # Print the plot spec and its data
  pith chart plan --table sales --type line --x day --y amount --agg avg --data`,
	}

	cmd.AddCommand(newChartTypesCommand())
	cmd.AddCommand(newChartValidateCommand())
	cmd.AddCommand(newChartPlanCommand())

	return cmd
}

func newChartTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List chart types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return renderChartTypes(NewCommandContextWithoutApp(cmd).Renderer)
		},
	}
}

type chartTypeInfo struct {
	Type      chart.Type `json:"type"`
	Name      string     `json:"name"`
	RequiresY bool       `json:"requiresY"`
	NumericY  bool       `json:"numericY"`
}

func renderChartTypes(r *output.Renderer) error {
	infos := make([]chartTypeInfo, 0, len(chart.Types))
	for _, t := range chart.Types {
		infos = append(infos, chartTypeInfo{
			Type:      t,
			Name:      t.DisplayName(),
			RequiresY: chart.RequiresYAxis(t),
			NumericY:  chart.RequiresNumericY(t, chart.Count),
		})
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(infos)
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"type", "name", "y axis", "numeric y"})
	for _, info := range infos {
		t.AppendRow(table.Row{info.Type, info.Name, yesNo(info.RequiresY), yesNo(info.NumericY)})
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		t.RenderMarkdown()
	} else {
		t.Render()
	}
	r.Println()
	r.Muted("Aggregations: " + strings.Join(aggregationNames(), ", "))
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func aggregationNames() []string {
	out := make([]string, len(chart.Aggregations))
	for i, a := range chart.Aggregations {
		out[i] = string(a)
	}
	return out
}

func addChartFlags(cmd *cobra.Command, opts *ChartOptions) {
	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "Table to chart")
	cmd.Flags().StringVar(&opts.Type, "type", "bar", "Chart type")
	cmd.Flags().StringVarP(&opts.X, "x", "x", "", "X-axis column")
	cmd.Flags().StringVarP(&opts.Y, "y", "y", "", "Y-axis column")
	cmd.Flags().StringVar(&opts.Color, "color", "", "Column to colour by")
	cmd.Flags().StringVar(&opts.Aggregation, "agg", "count", "Aggregation for grouped charts")
	_ = cmd.MarkFlagRequired("table")

	_ = cmd.RegisterFlagCompletionFunc("type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, len(chart.Types))
		for i, t := range chart.Types {
			names[i] = string(t)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("agg", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return aggregationNames(), cobra.ShellCompDirectiveNoFileComp
	})
}

// config parses the flags into a chart configuration.
func (o *ChartOptions) config() (chart.Config, error) {
	t, err := chart.ParseType(o.Type)
	if err != nil {
		return chart.Config{}, err
	}
	agg, err := chart.ParseAggregation(o.Aggregation)
	if err != nil {
		return chart.Config{}, err
	}
	return chart.Config{Type: t, X: o.X, Y: o.Y, Color: o.Color, Aggregation: agg}, nil
}

func newChartValidateCommand() *cobra.Command {
	opts := &ChartOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a chart configuration against a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			sch, err := cmdCtx.App.Schema.Describe(cmd.Context(), opts.Table)
			if err != nil {
				return err
			}
			res := chart.Validate(cfg, sch)

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				if err := r.JSON(res); err != nil {
					return err
				}
			} else if res.Valid {
				r.Success(fmt.Sprintf("%s of %s is valid", cfg.Type.DisplayName(), opts.Table))
			}
			if !res.Valid {
				return errors.New(res.Error)
			}
			return nil
		},
	}
	addChartFlags(cmd, opts)
	return cmd
}

func newChartPlanCommand() *cobra.Command {
	opts := &ChartOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the plot spec for a chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			sch, err := cmdCtx.App.Schema.Describe(ctx, opts.Table)
			if err != nil {
				return err
			}
			if res := chart.Validate(cfg, sch); !res.Valid {
				return errors.New(res.Error)
			}
			plot, err := cmdCtx.App.Charts.Plan(cfg, opts.Table, sch)
			if err != nil {
				return err
			}
			el, err := chart.Resolve(ctx, plot)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if !opts.Data {
				return r.JSON(el.Spec)
			}

			res, err := cmdCtx.App.Queries.Run(ctx, el.Spec.SQL)
			if err != nil {
				return err
			}
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]any{"spec": el.Spec, "data": res.Rows})
			}
			r.Header(2, fmt.Sprintf("%s: %s", el.Spec.Mark, opts.Table))
			format := FormatTable
			if r.EffectiveMode() == output.ModeMarkdown {
				format = FormatMarkdown
				r.Println(output.FormatCodeBlock("sql", el.Spec.SQL))
			} else {
				r.Muted(el.Spec.SQL)
			}
			return renderResults(r.Writer(), res, format, displayLimit(opts.Limit, cmdCtx.Cfg.Database.DefaultLimit))
		},
	}
	addChartFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.Data, "data", false, "Run the plot SQL and print its rows")
	cmd.Flags().IntVar(&opts.Limit, "limit", -1, "Maximum rows to display with --data")
	return cmd
}
