// Package obs holds the gateway's Prometheus metrics and the HTTP
// instrumentation middleware that feeds them.
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "authgate_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authgate_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_login_attempts_total",
			Help: "Login attempts by outcome (success, bad_credentials, bad_totp, rate_limited).",
		},
		[]string{"outcome"},
	)

	rateLimitBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_rate_limit_blocks_total",
			Help: "Requests blocked by the sliding-window rate limiter, by action.",
		},
		[]string{"action"},
	)

	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "authgate_active_sessions",
		Help: "Currently active admin sessions.",
	})

	availabilityState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "authgate_availability_state",
			Help: "Current availability state (1 on the active state's series, 0 elsewhere).",
		},
		[]string{"state"},
	)
)

// Init registers all gateway metrics with the default registry. Call once
// at startup.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		loginAttempts,
		rateLimitBlocks,
		activeSessions,
		availabilityState,
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordLogin counts a login attempt by outcome.
func RecordLogin(outcome string) {
	loginAttempts.WithLabelValues(outcome).Inc()
}

// RecordRateLimitBlock counts a sliding-window block for the given action.
func RecordRateLimitBlock(action string) {
	rateLimitBlocks.WithLabelValues(action).Inc()
}

// SetActiveSessions updates the active-session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// SetAvailability marks the active state's series 1 and the others 0.
func SetAvailability(state string) {
	for _, s := range []string{"available", "degraded", "lockdown"} {
		v := 0.0
		if s == state {
			v = 1
		}
		availabilityState.WithLabelValues(s).Set(v)
	}
}

// Instrument wraps a handler with in-flight, count, and latency metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for labelling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
