package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lending"

type httpMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// LendingMetrics tracks position accounting outcomes.
type LendingMetrics struct {
	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	solvency    *prometheus.CounterVec
}

var (
	httpMetricsOnce sync.Once
	httpRegistry    *httpMetrics

	lendingMetricsOnce sync.Once
	lendingRegistry    *LendingMetrics
)

// HTTP returns the lazily-initialised registry for the daemon's API surface.
func HTTP() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total API requests segmented by route and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected by rate limiting.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(httpRegistry.requests, httpRegistry.latency, httpRegistry.throttles)
	})
	return httpRegistry
}

// Observe records a completed API request.
func (m *httpMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle counts a rejected request. Reasons should be stable strings
// such as "rate_limit".
func (m *httpMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// Lending returns the singleton registry for pool operations.
func Lending() *LendingMetrics {
	lendingMetricsOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "operations_total",
				Help:      "Count of pool operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for pool operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "collateral_transitions_total",
				Help:      "Count of committed collateral flag events segmented by direction.",
			}, []string{"direction"}),
			solvency: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "solvency_rejections_total",
				Help:      "Count of operations aborted by the health factor check.",
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.latency,
			lendingRegistry.transitions,
			lendingRegistry.solvency,
		)
	})
	return lendingRegistry
}

// RecordOperation counts one finished operation.
func (m *LendingMetrics) RecordOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	operation = normalizeLabel(operation)
	m.operations.WithLabelValues(operation, normalizeLabel(outcome)).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
	if outcome == "solvency" {
		m.solvency.WithLabelValues(operation).Inc()
	}
}

// RecordCollateralTransition counts a committed flag event. Direction is
// "enabled" or "disabled".
func (m *LendingMetrics) RecordCollateralTransition(direction string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(direction)).Inc()
}

func normalizeLabel(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return v
}
