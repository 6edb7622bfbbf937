// Package metrics exposes Prometheus collectors for the bookmark service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Capture outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeFailure  = "failure"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	captureTotal               *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	bookmarkOpsTotal           *prometheus.CounterVec
	loginAttemptsTotal         *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkvault_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method, route and code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linkvault_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"method", "route"},
		)

		captureTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkvault_capture_total",
				Help: "Capture pipeline results, labeled by step (title, snapshot, favicon) and outcome.",
			},
			[]string{"step", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linkvault_fetch_duration_seconds",
				Help:    "Histogram of outbound fetch latencies, labeled by HTTP method.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method"},
		)

		bookmarkOpsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkvault_bookmarks_total",
				Help: "Bookmark operations, labeled by operation and result.",
			},
			[]string{"op", "result"},
		)

		loginAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkvault_login_attempts_total",
				Help: "Login attempts, labeled by result.",
			},
			[]string{"result"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveCapture counts the outcome of one capture step.
func ObserveCapture(step, outcome string) {
	Init()
	captureTotal.WithLabelValues(step, outcome).Inc()
}

// ObserveFetch records the latency of an outbound request.
func ObserveFetch(method string, duration time.Duration) {
	Init()
	fetchDurationSeconds.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveBookmarkOp counts a repository-level operation.
func ObserveBookmarkOp(op, result string) {
	Init()
	bookmarkOpsTotal.WithLabelValues(op, result).Inc()
}

// ObserveLogin counts a login attempt.
func ObserveLogin(result string) {
	Init()
	loginAttemptsTotal.WithLabelValues(result).Inc()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, route, ww.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
