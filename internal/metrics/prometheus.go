// Package metrics exposes pipeline counters on a dedicated Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeNoData      = "no_data"
	OutcomeFetchError  = "fetch_error"
	OutcomePersistFail = "persist_error"
)

// Recorder records pipeline metrics.
type Recorder struct {
	registry      *prometheus.Registry
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	fieldFailures *prometheus.CounterVec
	rowsPersisted *prometheus.CounterVec
}

// New creates a Recorder backed by its own registry, so tests can build as many as they like.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocklens_pipeline_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stocklens_pipeline_run_duration_seconds",
				Help:    "Duration of pipeline runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		fieldFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocklens_fundamentals_field_failures_total",
				Help: "Fundamentals fields that degraded to N/A because of unusable input",
			},
			[]string{"field"},
		),
		rowsPersisted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocklens_rows_persisted_total",
				Help: "Rows written to snapshot tables by data source",
			},
			[]string{"source"},
		),
	}
}

// RecordRun records one pipeline run.
func (r *Recorder) RecordRun(source, outcome string, d time.Duration) {
	r.runsTotal.WithLabelValues(outcome).Inc()
	r.runDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordFieldFailure records a fundamentals field that could not be normalized.
func (r *Recorder) RecordFieldFailure(field string) {
	r.fieldFailures.WithLabelValues(field).Inc()
}

// RecordRowsPersisted records rows written from a data source. Tickers are caller input
// and are kept out of the label set.
func (r *Recorder) RecordRowsPersisted(source string, n int) {
	r.rowsPersisted.WithLabelValues(source).Add(float64(n))
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
