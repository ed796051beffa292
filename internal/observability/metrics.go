package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the lookup service.
type Metrics struct {
	// Upstream API metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: source={countries,weather,icon}, outcome={success,error}
	UpstreamDuration *prometheus.HistogramVec // labels: source
	IconCache        *prometheus.CounterVec   // labels: result={hit,miss}

	// Lookup metrics.
	DirectorySize   prometheus.Gauge
	Classifications *prometheus.CounterVec // labels: kind={no_match,resolved,ambiguous,too_many}
	StaleResults    *prometheus.CounterVec // labels: source={weather,icon}
	ActiveSessions  prometheus.Gauge

	LookupEventsPublished prometheus.Counter
	LookupEventErrors     prometheus.Counter
}

// NewMetrics creates and registers all lookup metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "country_lookup",
			Name:      "upstream_requests_total",
			Help:      "Upstream API requests by source and outcome.",
		}, []string{"source", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "country_lookup",
			Name:      "upstream_duration_seconds",
			Help:      "Upstream API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		IconCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "country_lookup",
			Name:      "icon_cache_total",
			Help:      "Weather icon cache lookups by result.",
		}, []string{"result"}),
		DirectorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "country_lookup",
			Name:      "directory_countries",
			Help:      "Number of countries loaded into the directory.",
		}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "country_lookup",
			Name:      "classifications_total",
			Help:      "Query classifications by match kind.",
		}, []string{"kind"}),
		StaleResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "country_lookup",
			Name:      "stale_results_total",
			Help:      "Upstream results dropped because the resolved country changed.",
		}, []string{"source"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "country_lookup",
			Name:      "active_sessions",
			Help:      "Browser sessions currently held in memory.",
		}),
		LookupEventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "country_lookup",
			Name:      "lookup_events_published_total",
			Help:      "Lookup events written to the event sink.",
		}),
		LookupEventErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "country_lookup",
			Name:      "lookup_event_errors_total",
			Help:      "Lookup events that failed to publish.",
		}),
	}

	prometheus.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.IconCache,
		m.DirectorySize,
		m.Classifications,
		m.StaleResults,
		m.ActiveSessions,
		m.LookupEventsPublished,
		m.LookupEventErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		UpstreamRequests:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "country_lookup", Name: "upstream_requests_total"}, []string{"source", "outcome"}),
		UpstreamDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "country_lookup", Name: "upstream_duration_seconds"}, []string{"source"}),
		IconCache:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "country_lookup", Name: "icon_cache_total"}, []string{"result"}),
		DirectorySize:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "country_lookup", Name: "directory_countries"}),
		Classifications:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "country_lookup", Name: "classifications_total"}, []string{"kind"}),
		StaleResults:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "country_lookup", Name: "stale_results_total"}, []string{"source"}),
		ActiveSessions:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "country_lookup", Name: "active_sessions"}),
		LookupEventsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "country_lookup", Name: "lookup_events_published_total"}),
		LookupEventErrors:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "country_lookup", Name: "lookup_event_errors_total"}),
	}
}

// ObserveUpstream records the outcome and duration of one upstream call.
func (m *Metrics) ObserveUpstream(source string, seconds float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequests.WithLabelValues(source, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(source).Observe(seconds)
}
