// Package metrics provides Prometheus instrumentation for the auditor service.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvloznov/auditor-agent/internal/scoring"
	"github.com/dvloznov/auditor-agent/internal/table"
)

const namespace = "auditor"

// Analysis outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeSchemaError = "schema_error"
	OutcomeParseError  = "parse_error"
	OutcomeFormatError = "format_error"
	OutcomeError       = "error"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AnalysesTotal counts scoring calls by source and outcome.
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total batch analyses by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	// AnalysisDuration observes end-to-end analysis time by source.
	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Batch analysis duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	// TransactionsScoredTotal counts scored rows by risk label.
	TransactionsScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_scored_total",
			Help:      "Total transactions scored by risk label.",
		},
		[]string{"label"},
	)

	// TimeFallbacksTotal counts batches whose time column could not be parsed.
	TimeFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "time_fallbacks_total",
		Help:      "Total batches scored with date-only timestamps for some or all rows.",
	})

	// JobsTotal counts background jobs by final status.
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total background analysis jobs by final status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AnalysesTotal,
		AnalysisDuration,
		TransactionsScoredTotal,
		TimeFallbacksTotal,
		JobsTotal,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcome classifies an analysis error for the outcome label.
func Outcome(err error) string {
	var (
		schemaErr *scoring.SchemaError
		parseErr  *scoring.ParseError
		formatErr *table.FormatError
	)
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &schemaErr):
		return OutcomeSchemaError
	case errors.As(err, &parseErr):
		return OutcomeParseError
	case errors.As(err, &formatErr):
		return OutcomeFormatError
	default:
		return OutcomeError
	}
}

// ObserveAnalysis records one finished analysis. summary may be nil on
// failure.
func ObserveAnalysis(source string, started time.Time, summary *scoring.Summary, err error) {
	AnalysesTotal.WithLabelValues(source, Outcome(err)).Inc()
	AnalysisDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())

	if summary == nil {
		return
	}
	for label, n := range summary.Distribution() {
		TransactionsScoredTotal.WithLabelValues(string(label)).Add(float64(n))
	}
	if summary.TimeFallbackApplied {
		TimeFallbacksTotal.Inc()
	}
}
