package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

type chainMetrics struct {
	height  prometheus.Gauge
	wallets prometheus.Gauge
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	chainMetricsOnce sync.Once
	chainRegistry    *chainMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording gateway
// requests per module and operation.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fildawallet",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total wallet gateway requests segmented by module, operation and outcome.",
			}, []string{"module", "operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fildawallet",
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Total wallet gateway errors segmented by module, operation and status code.",
			}, []string{"module", "operation", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "fildawallet",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for wallet gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "operation"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fildawallet",
				Subsystem: "gateway",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by rate limits, quotas or pauses.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status code should be the HTTP
// status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(module, operation, strconv.Itoa(status)).Inc()
	}
	m.requests.WithLabelValues(module, operation, outcome).Inc()
	m.latency.WithLabelValues(module, operation).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit", "quota" or "paused".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// Chain returns the gauges tracking the simulated chain.
func Chain() *chainMetrics {
	chainMetricsOnce.Do(func() {
		chainRegistry = &chainMetrics{
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "fildawallet",
				Subsystem: "chain",
				Name:      "height",
				Help:      "Current block height of the simulated chain.",
			}),
			wallets: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "fildawallet",
				Subsystem: "factory",
				Name:      "wallets",
				Help:      "Number of wallets created by the factory.",
			}),
		}
		prometheus.MustRegister(chainRegistry.height, chainRegistry.wallets)
	})
	return chainRegistry
}

// SetHeight records the block height.
func (m *chainMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

// SetWallets records the number of wallets made.
func (m *chainMetrics) SetWallets(count uint64) {
	if m == nil {
		return
	}
	m.wallets.Set(float64(count))
}
