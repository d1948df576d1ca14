package chart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/pith/internal/query"
)

// Plot is either a finished Element or a Pending plot still waiting on data.
// Resolve turns either into an Element before it reaches a renderer.
type Plot interface {
	isPlot()
}

// Element is a fully specified plot.
type Element struct {
	Spec *PlotSpec
}

func (Element) isPlot() {}

// Pending is a plot whose colour domain has not been fetched yet.
type Pending struct {
	once    sync.Once
	resolve func(ctx context.Context) (Element, error)
	el      Element
	err     error
}

func (*Pending) isPlot() {}

// Resolve returns the Element for p, running a Pending plot's work at most
// once.
func Resolve(ctx context.Context, p Plot) (Element, error) {
	switch v := p.(type) {
	case Element:
		return v, nil
	case *Element:
		return *v, nil
	case *Pending:
		v.once.Do(func() { v.el, v.err = v.resolve(ctx) })
		return v.el, v.err
	case nil:
		return Element{}, fmt.Errorf("no plot to resolve")
	default:
		return Element{}, fmt.Errorf("unknown plot variant %T", p)
	}
}

// Runner executes SQL.
type Runner interface {
	Run(ctx context.Context, q any) (*query.Result, error)
}

// Planner plans plots, fetching colour domains through the normalizer.
type Planner struct {
	runner Runner
	logger *slog.Logger
}

// NewPlanner creates a Planner.
func NewPlanner(runner Runner, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Planner{runner: runner, logger: logger}
}

// Plan returns an Element when no data is needed, or a Pending plot that
// fetches the colour domain on Resolve. A failed domain query degrades to a
// plot without a legend.
func (p *Planner) Plan(cfg Config, table string, cols NumericLookup) (Plot, error) {
	spec, err := Plan(cfg, table, cols)
	if err != nil {
		return nil, err
	}
	sql, ok := ColorDomainSQL(cfg, table)
	if !ok {
		return Element{Spec: spec}, nil
	}

	return &Pending{resolve: func(ctx context.Context) (Element, error) {
		res, err := p.runner.Run(ctx, sql)
		if err != nil {
			p.logger.Warn("could not fetch color domain", "table", table, "column", cfg.Color, "error", err)
			return Element{Spec: spec}, nil
		}
		domain := make([]string, 0, len(res.Rows))
		for _, row := range res.Rows {
			domain = append(domain, domainLabel(row[cfg.Color]))
		}
		return Element{Spec: spec.WithColorDomain(domain)}, nil
	}}, nil
}

func domainLabel(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
