package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's request-path Prometheus collectors,
// generalizing gateway/middleware.Observability's
// requests_total/request_duration_seconds pair and adding the
// domain counters named in SPEC_FULL.md §12 (transitions, notifier
// drops, rate-limit rejections).
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	transitionsTotal  *prometheus.CounterVec
	rateLimitRejected *prometheus.CounterVec
	notifierDropped   prometheus.Counter
}

// NewMetrics registers a fresh Prometheus registry with the relay's collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nanopay_relay_requests_total",
			Help: "HTTP requests served, labeled by route, method, and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "nanopay_relay_request_duration_seconds",
			Help: "HTTP request latency in seconds, labeled by route and method.",
		}, []string{"route", "method"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nanopay_relay_job_transitions_total",
			Help: "Job lifecycle transitions, labeled by the resulting status.",
		}, []string{"status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nanopay_relay_rate_limit_rejected_total",
			Help: "Requests rejected by the rate limiter, labeled by scope.",
		}, []string{"scope"}),
		notifierDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nanopay_relay_notifier_dropped_total",
			Help: "Job-transition notifications with no registered heartbeat waiter.",
		}),
	}

	registry.MustRegister(m.requestsTotal, m.requestDuration, m.transitionsTotal, m.rateLimitRejected, m.notifierDropped)
	return m
}

// Handler exposes the registry at the conventional /metrics path.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware wraps a handler, recording request count and latency for route.
func (m *Metrics) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
			m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

// RecordTransition increments the transitions counter for a resulting status.
func (m *Metrics) RecordTransition(status string) {
	m.transitionsTotal.WithLabelValues(status).Inc()
}

// RecordRateLimitRejected increments the rate-limit rejection counter for scope.
func (m *Metrics) RecordRateLimitRejected(scope string) {
	m.rateLimitRejected.WithLabelValues(scope).Inc()
}

// RecordNotifierDropped increments the dropped-notification counter.
func (m *Metrics) RecordNotifierDropped() {
	m.notifierDropped.Inc()
}
