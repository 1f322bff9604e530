package httpadapter

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/covlens/covlens/internal/observability/metrics"
)

// rateLimitMiddleware applies a process-wide token bucket. Comparison and
// upload traffic shares one bucket; rejected requests get a Retry-After
// hint derived from the refill rate.
func rateLimitMiddleware(next http.Handler, rps float64, burst int, m *metrics.HTTPMetrics) http.Handler {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			retryAfter := int(1.0/rps) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			if m != nil {
				m.RateLimited.Inc()
			}
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "rate limit exceeded, retry later",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware bounds in-flight requests. A request that cannot
// take a slot within the wait window is shed with 503 instead of queuing
// behind slow comparisons indefinitely.
func backpressureMiddleware(next http.Handler, maxConcurrent int, wait time.Duration) http.Handler {
	if maxConcurrent <= 0 {
		return next
	}
	slots := make(chan struct{}, maxConcurrent)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			next.ServeHTTP(w, r)
		case <-timer.C:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "server overloaded, retry later",
			})
		case <-r.Context().Done():
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "request cancelled while waiting for capacity",
			})
		}
	})
}

// metricsMiddleware records request counts, latency and in-flight gauge on
// the API registry. Routes are reduced to their pattern so series stay
// bounded regardless of path parameters.
func metricsMiddleware(next http.Handler, m *metrics.HTTPMetrics) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.statusCode)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
