package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	lockWaitDuration *prometheus.HistogramVec
	lockTimeoutTotal *prometheus.CounterVec

	safeOpTotal          *prometheus.CounterVec
	safeOpDuration       *prometheus.HistogramVec
	corruptFallbackTotal prometheus.Counter

	cacheRequestTotal      *prometheus.CounterVec
	cacheInvalidationTotal prometheus.Counter
	cacheEvictionTotal     prometheus.Counter
	cacheSize              prometheus.Gauge

	oplogAppendTotal *prometheus.CounterVec

	updateRunTotal    *prometheus.CounterVec
	updateRunDuration prometheus.Histogram
	healthScore       *prometheus.GaugeVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			lockWaitDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "lock_wait_duration_seconds",
					Help:    "Time spent waiting for a file lock by outcome.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"outcome"},
			),
			lockTimeoutTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "lock_timeout_total",
					Help: "Total lock acquisitions abandoned after the timeout window.",
				},
				[]string{"mode"},
			),
			safeOpTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "safe_op_total",
					Help: "Total safe store operations by kind and status.",
				},
				[]string{"op", "status"},
			),
			safeOpDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "safe_op_duration_seconds",
					Help:    "Safe store operation duration in seconds by kind.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"op"},
			),
			corruptFallbackTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "corrupt_fallback_total",
					Help: "Times malformed record content was discarded in favor of a default.",
				},
			),
			cacheRequestTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_request_total",
					Help: "Total cache lookups by result (hit or miss).",
				},
				[]string{"result"},
			),
			cacheInvalidationTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "cache_invalidation_total",
					Help: "Total cache entries removed by validation or explicit invalidation.",
				},
			),
			cacheEvictionTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "cache_eviction_total",
					Help: "Total cache entries evicted by the LRU bound.",
				},
			),
			cacheSize: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "cache_size",
					Help: "Current number of cached records.",
				},
			),
			oplogAppendTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "oplog_append_total",
					Help: "Total operation log appends by status.",
				},
				[]string{"status"},
			),
			updateRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "update_run_total",
					Help: "Total incremental update runs by status.",
				},
				[]string{"status"},
			),
			updateRunDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "update_run_duration_seconds",
					Help:    "Incremental update run duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			healthScore: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "kb_health_score",
					Help: "Latest knowledge base health score by check.",
				},
				[]string{"check"},
			),
		}

		prometheus.MustRegister(
			m.lockWaitDuration,
			m.lockTimeoutTotal,
			m.safeOpTotal,
			m.safeOpDuration,
			m.corruptFallbackTotal,
			m.cacheRequestTotal,
			m.cacheInvalidationTotal,
			m.cacheEvictionTotal,
			m.cacheSize,
			m.oplogAppendTotal,
			m.updateRunTotal,
			m.updateRunDuration,
			m.healthScore,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordLockWait(duration time.Duration, acquired bool) {
	m := getMetrics()
	outcome := "timeout"
	if acquired {
		outcome = "acquired"
	}
	m.lockWaitDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordLockTimeout(mode string) {
	m := getMetrics()
	m.lockTimeoutTotal.WithLabelValues(mode).Inc()
}

func RecordSafeOp(op string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.safeOpTotal.WithLabelValues(op, status).Inc()
	m.safeOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func RecordCorruptFallback() {
	m := getMetrics()
	m.corruptFallbackTotal.Inc()
}

func RecordCacheHit() {
	m := getMetrics()
	m.cacheRequestTotal.WithLabelValues("hit").Inc()
}

func RecordCacheMiss() {
	m := getMetrics()
	m.cacheRequestTotal.WithLabelValues("miss").Inc()
}

func RecordCacheInvalidation() {
	m := getMetrics()
	m.cacheInvalidationTotal.Inc()
}

func RecordCacheEviction() {
	m := getMetrics()
	m.cacheEvictionTotal.Inc()
}

func SetCacheSize(size int) {
	m := getMetrics()
	m.cacheSize.Set(float64(size))
}

func RecordOplogAppend(success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.oplogAppendTotal.WithLabelValues(status).Inc()
}

func RecordUpdateRun(duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.updateRunTotal.WithLabelValues(status).Inc()
	m.updateRunDuration.Observe(duration.Seconds())
}

func SetHealthScore(check string, score int) {
	m := getMetrics()
	m.healthScore.WithLabelValues(check).Set(float64(score))
}
