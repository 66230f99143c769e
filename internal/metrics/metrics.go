// Package metrics exposes the Prometheus collectors of the farm API and
// the ledger relay.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smukkama/farm-carbon/internal/aggregation"
)

const namespace = "farm_carbon"

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds every collector, registered on its own registry
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	PipelineRuns     *prometheus.CounterVec
	PipelineDuration prometheus.Histogram
	RowsOmitted      prometheus.Counter
	HybridsRemoved   prometheus.Counter
	FarmFailures     prometheus.Counter
	ReferenceReloads *prometheus.CounterVec
	LedgerNotified   *prometheus.CounterVec
	LedgerRelayed    *prometheus.CounterVec
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Aggregation pipeline runs by outcome.",
		}, []string{"outcome"}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Time spent aggregating one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		RowsOmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_rows_omitted_total",
			Help:      "Rows excluded because their species did not resolve.",
		}),
		HybridsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_hybrids_removed_total",
			Help:      "Rows excluded as hybrid cultivars.",
		}),
		FarmFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_farm_failures_total",
			Help:      "Farms excluded because their rate is undefined.",
		}),
		ReferenceReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_reloads_total",
			Help:      "Reference data reloads by outcome.",
		}, []string{"outcome"}),
		LedgerNotified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_notifications_total",
			Help:      "Ledger updates published by outcome.",
		}, []string{"outcome"}),
		LedgerRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_relayed_total",
			Help:      "Ledger updates delivered by the relay by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.PipelineRuns,
		m.PipelineDuration,
		m.RowsOmitted,
		m.HybridsRemoved,
		m.FarmFailures,
		m.ReferenceReloads,
		m.LedgerNotified,
		m.LedgerRelayed,
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePipeline records one pipeline run
func (m *Metrics) ObservePipeline(report *aggregation.Report, elapsed time.Duration, err error) {
	m.PipelineDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.PipelineRuns.WithLabelValues(OutcomeFailure).Inc()
		return
	}
	m.PipelineRuns.WithLabelValues(OutcomeSuccess).Inc()
	if report == nil {
		return
	}
	m.RowsOmitted.Add(float64(len(report.Omitted)))
	m.HybridsRemoved.Add(float64(report.HybridsRemoved))
	m.FarmFailures.Add(float64(len(report.FarmFailures)))
}

// ObserveOutcome increments vec under the outcome of err
func ObserveOutcome(vec *prometheus.CounterVec, err error) {
	if err != nil {
		vec.WithLabelValues(OutcomeFailure).Inc()
		return
	}
	vec.WithLabelValues(OutcomeSuccess).Inc()
}
