// Package metrics provides Prometheus metrics for the import service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
)

const namespace = "inventory"

// Metrics holds the collectors, registered on one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	PreviewsTotal   *prometheus.CounterVec
	PreviewRows     prometheus.Histogram
	CommitsTotal    *prometheus.CounterVec
	CommitDuration  prometheus.Histogram
	CommitsInFlight prometheus.Gauge
	EntityOutcomes  *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers all collectors on reg. Passing nil uses a fresh registry,
// which is what tests want.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		PreviewsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "previews_total",
				Help:      "Previews built, by whether they carried row errors",
			},
			[]string{"result"},
		),
		PreviewRows: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "preview_rows",
				Help:      "Rows per preview",
				Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
			},
		),
		CommitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "commits_total",
				Help:      "Commit attempts by status",
			},
			[]string{"status"},
		),
		CommitDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "commit_duration_seconds",
				Help:      "Duration of commits in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
			},
		),
		CommitsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "commits_in_flight",
				Help:      "Commits currently running",
			},
		),
		EntityOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "entity_outcomes_total",
				Help:      "Per-candidate commit outcomes",
			},
			[]string{"entity", "outcome"},
		),

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status_code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
	}
}

// Observe implements importer.Observer.
func (m *Metrics) Observe(kind importer.EntityKind, outcome importer.Outcome) {
	m.EntityOutcomes.WithLabelValues(string(kind), string(outcome)).Inc()
}

var _ importer.Observer = (*Metrics)(nil)

// RecordPreview counts one built preview.
func (m *Metrics) RecordPreview(rows int, hasErrors bool) {
	result := "ok"
	if hasErrors {
		result = "has_errors"
	}
	m.PreviewsTotal.WithLabelValues(result).Inc()
	m.PreviewRows.Observe(float64(rows))
}

// RecordCommit counts one commit attempt. status is success, failed or
// rejected.
func (m *Metrics) RecordCommit(status string, d time.Duration) {
	m.CommitsTotal.WithLabelValues(status).Inc()
	if status != "rejected" {
		m.CommitDuration.Observe(d.Seconds())
	}
}

// RecordHTTP counts one served request.
func (m *Metrics) RecordHTTP(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
