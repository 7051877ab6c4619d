package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather"

// Metrics holds the Prometheus counters, histograms, and gauges shared by the
// weather client, its decorators, the watcher, and the HTTP API.
type Metrics struct {
	// Upstream client metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: endpoint={weather,forecast}, outcome={success,configuration,network,upstream}
	UpstreamDuration *prometheus.HistogramVec // labels: endpoint
	RateLimitWaits   prometheus.Counter

	// Memoization metrics.
	CacheLookups *prometheus.CounterVec // labels: endpoint, result={hit,miss}

	// Watcher metrics.
	WatchRuns            *prometheus.CounterVec // labels: outcome={success,partial,failed}
	ObservationsCaptured prometheus.Counter
	ObservationsStored   *prometheus.CounterVec // labels: sink
	SinkErrors           *prometheus.CounterVec // labels: sink
	WatchRunDuration     prometheus.Histogram

	// AI advice metrics.
	AdviceRequests *prometheus.CounterVec // labels: provider, outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics and registers them with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.RateLimitWaits,
		m.CacheLookups,
		m.WatchRuns,
		m.ObservationsCaptured,
		m.ObservationsStored,
		m.SinkErrors,
		m.WatchRunDuration,
		m.AdviceRequests,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "OpenWeatherMap requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "OpenWeatherMap request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"endpoint"}),
		RateLimitWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_waits_total",
			Help:      "Requests that had to wait for the client-side rate limiter.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Memoized lookups by endpoint and result.",
		}, []string{"endpoint", "result"}),
		WatchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_runs_total",
			Help:      "Scheduled watch runs by outcome.",
		}, []string{"outcome"}),
		ObservationsCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_captured_total",
			Help:      "Observations captured by the watcher.",
		}),
		ObservationsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_stored_total",
			Help:      "Observations accepted by each sink.",
		}, []string{"sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed sink writes by sink.",
		}, []string{"sink"}),
		WatchRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "watch_run_duration_seconds",
			Help:      "Duration of a complete watch run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		AdviceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advice_requests_total",
			Help:      "AI advice requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}
}
