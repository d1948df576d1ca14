// Package metrics holds the Prometheus collectors shared by the workbench.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// queriesTotal counts statements run through the normalizer by outcome.
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pith_queries_total",
			Help: "Total number of queries executed, by outcome",
		},
		[]string{"outcome"},
	)

	queryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pith_query_duration_seconds",
			Help:    "Query execution time including result materialization",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)

	// ingestionsTotal counts file ingestions by decoder and outcome.
	ingestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pith_ingestions_total",
			Help: "Total number of file ingestions, by decoder and outcome",
		},
		[]string{"decoder", "outcome"},
	)

	ingestedRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pith_table_rows",
			Help: "Row count of each table at its last ingestion",
		},
		[]string{"table"},
	)

	// modelState is 1 for the current model lifecycle state, 0 otherwise.
	modelState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pith_model_state",
			Help: "Current model lifecycle state (1 = active)",
		},
		[]string{"state"},
	)

	generatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pith_generations_total",
			Help: "Total number of model generations, by outcome",
		},
		[]string{"outcome"},
	)
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// ObserveQuery records one normalizer execution.
func ObserveQuery(elapsed time.Duration, err error) {
	queriesTotal.WithLabelValues(outcome(err)).Inc()
	queryDuration.Observe(elapsed.Seconds())
}

// ObserveIngestion records one ingestion attempt. rows is ignored on failure.
func ObserveIngestion(decoder, table string, rows int, err error) {
	ingestionsTotal.WithLabelValues(decoder, outcome(err)).Inc()
	if err == nil {
		ingestedRows.WithLabelValues(table).Set(float64(rows))
	}
}

// SetModelState marks state as the active lifecycle state among states.
func SetModelState(state string, states []string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		modelState.WithLabelValues(s).Set(v)
	}
}

// ObserveGeneration records one completed or failed generation.
func ObserveGeneration(err error) {
	generatedTotal.WithLabelValues(outcome(err)).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
