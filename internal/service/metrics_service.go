package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
)

const metricsNamespace = "timetable"

// Generation outcomes used as the "outcome" label.
const (
	OutcomeClean     = "clean"
	OutcomeWarnings  = "warnings"
	OutcomeConflicts = "conflicts"
	OutcomeRejected  = "rejected"
)

// MetricsService holds the Prometheus collectors of the timetable service and
// a few atomic counters for the JSON snapshot.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheWrite         prometheus.Observer
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	dbQueryDuration    *prometheus.HistogramVec
	generationDuration prometheus.Observer
	generationTotal    *prometheus.CounterVec
	assignmentsPlaced  prometheus.Observer
	warningsTotal      prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	generationCount      uint64
	rejectedCount        uint64
	warningCount         uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "report_cache_read_seconds",
		Help:      "Latency of report cache reads",
		Buckets:   prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "report_cache_write_seconds",
		Help:      "Latency of report cache writes",
		Buckets:   prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "report_cache_hits_total",
		Help:      "Report cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "report_cache_misses_total",
		Help:      "Report cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "db_query_duration_seconds",
		Help:      "Duration of database operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"query"})

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "generation_duration_seconds",
		Help:      "Wall time of engine runs",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
	})

	generationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "generations_total",
		Help:      "Engine runs by outcome",
	}, []string{"outcome"})

	assignmentsPlaced := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "assignments_placed",
		Help:      "Sessions placed per engine run",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	warningsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "generation_warnings_total",
		Help:      "Warnings emitted by engine runs",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Current number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		dbQueryDuration, generationDuration, generationTotal, assignmentsPlaced, warningsTotal, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		dbQueryDuration:    dbQueryDuration,
		generationDuration: generationDuration,
		generationTotal:    generationTotal,
		assignmentsPlaced:  assignmentsPlaced,
		warningsTotal:      warningsTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a report cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveCacheWrite tracks report cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database operation timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveGeneration records one engine run.
func (m *MetricsService) ObserveGeneration(report scheduler.Report, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := GenerationOutcome(report)
	m.generationDuration.Observe(duration.Seconds())
	m.generationTotal.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.generationCount, 1)
	if outcome == OutcomeRejected {
		atomic.AddUint64(&m.rejectedCount, 1)
		return
	}
	m.assignmentsPlaced.Observe(float64(len(report.Assignments)))
	m.warningsTotal.Add(float64(len(report.Warnings)))
	atomic.AddUint64(&m.warningCount, uint64(len(report.Warnings)))
}

// GenerationOutcome classifies a report for the outcome label.
func GenerationOutcome(report scheduler.Report) string {
	switch {
	case report.HasFatal():
		return OutcomeRejected
	case len(report.Conflicts) > 0:
		return OutcomeConflicts
	case len(report.Warnings) > 0:
		return OutcomeWarnings
	default:
		return OutcomeClean
	}
}

// Snapshot returns aggregated counters for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.MetricsSnapshot{
		Requests:         requests,
		AvgRequestMillis: avgRequestMs,
		CacheHitRatio:    cacheRatio,
		Generations:      atomic.LoadUint64(&m.generationCount),
		Rejected:         atomic.LoadUint64(&m.rejectedCount),
		Warnings:         atomic.LoadUint64(&m.warningCount),
		Goroutines:       runtime.NumGoroutine(),
		GeneratedAt:      time.Now().UTC(),
	}
}
