// Package metrics exposes Prometheus collectors for the HTTP surface of the
// lesson service. Lesson progress metrics live in the progress Prometheus sink.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxLabelLen = 64

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	sessionOperationsTotal     *prometheus.CounterVec
	contentFetchesTotal        *prometheus.CounterVec
	contentBytesTotal          *prometheus.CounterVec
	sessionsLive               prometheus.Gauge
	rateLimitedTotal           prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"method", "route"},
		)

		sessionOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lesson_session_operations_total",
				Help: "Session operations served over HTTP, labeled by operation and outcome.",
			},
			[]string{"op", "outcome"},
		)

		contentFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lesson_content_fetches_total",
				Help: "Unit content fetches, labeled by module and result.",
			},
			[]string{"module", "result"},
		)

		contentBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lesson_content_bytes_total",
				Help: "Unit content bytes served, labeled by module.",
			},
			[]string{"module"},
		)

		sessionsLive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lesson_sessions_live",
				Help: "Sessions currently held in memory.",
			},
		)

		rateLimitedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "http_requests_rate_limited_total",
				Help: "Requests rejected with 429 by the per-client limiter.",
			},
		)
	})
}

// SanitizeLabel lowercases s, replaces characters outside [a-z0-9_-] with
// '_', and truncates it so caller-supplied ids cannot explode label values.
// It returns "unknown" for empty input.
func SanitizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range s {
		if b.Len() >= maxLabelLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSessionOperation counts one session operation.
func ObserveSessionOperation(op, outcome string) {
	sessionOperationsTotal.WithLabelValues(op, outcome).Inc()
}

// ObserveContentFetch counts a content fetch and the bytes served.
func ObserveContentFetch(module, result string, bytesServed int) {
	module = SanitizeLabel(module)
	contentFetchesTotal.WithLabelValues(module, result).Inc()
	if bytesServed > 0 {
		contentBytesTotal.WithLabelValues(module).Add(float64(bytesServed))
	}
}

// SetLiveSessions records how many sessions are in memory.
func SetLiveSessions(n int) {
	sessionsLive.Set(float64(n))
}

// ObserveRateLimited counts a request rejected by the rate limiter.
func ObserveRateLimited() {
	rateLimitedTotal.Inc()
}
