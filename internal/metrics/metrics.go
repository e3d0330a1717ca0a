// Package metrics provides Prometheus metrics for the presence tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the tracker.
type Metrics struct {
	SamplesTotal      *prometheus.CounterVec
	CyclesTotal       *prometheus.CounterVec
	CyclesSkipped     prometheus.Counter
	CycleDuration     prometheus.Histogram
	BucketsPruned     prometheus.Counter
	RecordsTracked    prometheus.Gauge
	HTTPRequestsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SamplesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_samples_total",
				Help: "Total presence samples merged, by observed status.",
			},
			[]string{"status"},
		),
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_cycles_total",
				Help: "Total sampling cycles by result.",
			},
			[]string{"result"},
		),
		CyclesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tracker_cycles_skipped_total",
				Help: "Ticks skipped because the previous cycle was still running.",
			},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracker_cycle_duration_seconds",
				Help:    "Duration of a full sample-merge-prune-persist cycle.",
				Buckets: prometheus.DefBuckets,
			},
		),
		BucketsPruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tracker_buckets_pruned_total",
				Help: "Hourly buckets deleted by retention pruning.",
			},
		),
		RecordsTracked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracker_records",
				Help: "Number of user records currently in the store.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_http_requests_total",
				Help: "HTTP requests by route and status code.",
			},
			[]string{"route", "status"},
		),
		registry: reg,
	}

	reg.MustRegister(m.SamplesTotal)
	reg.MustRegister(m.CyclesTotal)
	reg.MustRegister(m.CyclesSkipped)
	reg.MustRegister(m.CycleDuration)
	reg.MustRegister(m.BucketsPruned)
	reg.MustRegister(m.RecordsTracked)
	reg.MustRegister(m.HTTPRequestsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSample increments the sample counter for one observed status.
func (m *Metrics) RecordSample(status string) {
	m.SamplesTotal.WithLabelValues(status).Inc()
}

// RecordCycle records the outcome and duration of one sampling cycle.
func (m *Metrics) RecordCycle(result string, seconds float64) {
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(seconds)
}
