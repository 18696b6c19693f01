package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agri_weather"

// Metrics holds the Prometheus collectors for the dashboard service.
type Metrics struct {
	// Upstream API metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: source, endpoint, outcome={success,transport,status,payload,timeout}
	UpstreamDuration *prometheus.HistogramVec // labels: source, endpoint

	CatalogStations *prometheus.GaugeVec // labels: institution

	// Export metrics.
	Downloads *prometheus.CounterVec // labels: format={csv,xlsx}, outcome={success,empty,timeout,error}

	// StaleResults counts query responses dropped because a newer query had started.
	StaleResults prometheus.Counter

	ActiveSessions prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Remote weather API requests by source, endpoint and outcome.",
		}, []string{"source", "endpoint", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Remote weather API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source", "endpoint"}),
		CatalogStations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_stations",
			Help:      "Stations currently held in the catalog per institution.",
		}, []string{"institution"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Export downloads by format and outcome.",
		}, []string{"format", "outcome"}),
		StaleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_discarded_total",
			Help:      "Query results discarded because a newer query superseded them.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Dashboard sessions currently held in memory.",
		}),
	}

	prometheus.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.CatalogStations,
		m.Downloads,
		m.StaleResults,
		m.ActiveSessions,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "upstream_requests_total"}, []string{"source", "endpoint", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "upstream_request_duration_seconds"}, []string{"source", "endpoint"}),
		CatalogStations:  prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "catalog_stations"}, []string{"institution"}),
		Downloads:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "downloads_total"}, []string{"format", "outcome"}),
		StaleResults:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "stale_results_discarded_total"}),
		ActiveSessions:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "active_sessions"}),
	}
}
