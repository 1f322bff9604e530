package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics carries its own registry so the API surface exposes only
// its own series on /metrics.
type HTTPMetrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	RateLimited        prometheus.Counter
	ProposalUploads    *prometheus.CounterVec
	ComparisonsTotal   *prometheus.CounterVec
	ComparisonSkipped  *prometheus.CounterVec
	UniverseChecks     *prometheus.CounterVec
	ValidationFailures prometheus.Counter
}

func NewHTTPMetrics() *HTTPMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &HTTPMetrics{
		Registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covlens",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "covlens",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "covlens",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Requests currently being served.",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "covlens",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429 by the rate limiter.",
		}),
		ProposalUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covlens",
			Subsystem: "proposals",
			Name:      "uploads_total",
			Help:      "Proposal document uploads by insurer.",
		}, []string{"insurer"}),
		ComparisonsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covlens",
			Subsystem: "comparisons",
			Name:      "entries_total",
			Help:      "Comparison entries by final state.",
		}, []string{"state"}),
		ComparisonSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covlens",
			Subsystem: "comparisons",
			Name:      "skipped_total",
			Help:      "Comparison entries excluded from the comparable set, by reason.",
		}, []string{"reason"}),
		UniverseChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covlens",
			Subsystem: "universe",
			Name:      "checks_total",
			Help:      "Universe membership checks by outcome.",
		}, []string{"outcome"}),
		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "covlens",
			Subsystem: "http",
			Name:      "openapi_validation_failures_total",
			Help:      "Requests rejected by OpenAPI schema validation.",
		}),
	}
	return m
}
