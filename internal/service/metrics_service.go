package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "qa_reports"

// MetricsService owns a private Prometheus registry and mirrors the counters
// the system check reports.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec
	cacheLatency *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	attachments  *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
	conflicts    *prometheus.CounterVec
	jobs         *prometheus.CounterVec

	requests   atomic.Uint64
	hits       atomic.Uint64
	misses     atomic.Uint64
	fallbacks  atomic.Uint64
	rejected   atomic.Uint64
	conflicted atomic.Uint64
}

// MetricsSnapshot summarises process counters.
type MetricsSnapshot struct {
	RequestsTotal   uint64    `json:"requests_total"`
	CacheHitRatio   float64   `json:"cache_hit_ratio"`
	RemoteFallbacks uint64    `json:"remote_fallbacks"`
	RateLimited     uint64    `json:"rate_limited"`
	Conflicts       uint64    `json:"conflicts"`
	Goroutines      int       `json:"goroutines"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// NewMetricsService builds the registry with Go runtime and process collectors.
func NewMetricsService() *MetricsService {
	m := &MetricsService{registry: prometheus.NewRegistry()}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.httpDuration = m.histogram("http_request_duration_seconds", "HTTP request latency by route template.", "method", "route", "status")
	m.httpTotal = m.counter("http_requests_total", "HTTP requests by route template.", "method", "route", "status")
	m.cacheLatency = m.histogram("cache_operation_seconds", "Transient store latency.", "op")
	m.cacheLookups = m.counter("cache_lookups_total", "Transient store reads by result.", "result")
	m.attachments = m.counter("attachment_uploads_total", "Photo uploads by the tier that accepted them.", "tier")
	m.rateLimited = m.counter("rate_limit_rejections_total", "Requests rejected by the rate limiter.", "action")
	m.conflicts = m.counter("report_conflicts_total", "Report mutations rejected by a failed precondition.", "kind")
	m.jobs = m.counter("background_jobs_total", "Background job attempts by queue and outcome.", "queue", "outcome")
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hit_ratio",
		Help:      "Share of transient store reads that hit.",
	}, m.hitRatio))

	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

func (m *MetricsService) counter(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: metricsNamespace, Name: name, Help: help}, labels)
	m.registry.MustRegister(c)
	return c
}

func (m *MetricsService) histogram(name, help string, labels ...string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: metricsNamespace, Name: name, Help: help, Buckets: prometheus.DefBuckets}, labels)
	m.registry.MustRegister(h)
	return h
}

func (m *MetricsService) hitRatio() float64 {
	hits, misses := m.hits.Load(), m.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request. route is the gin route template.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.httpTotal.WithLabelValues(method, route, code).Inc()
	m.requests.Add(1)
}

// RecordCacheOperation records a transient store read.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues("get").Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		m.hits.Add(1)
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
	m.misses.Add(1)
}

// ObserveCacheWrite records a transient store write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues("set").Observe(duration.Seconds())
}

// RecordAttachment counts an upload by tier: remote, local or failed.
func (m *MetricsService) RecordAttachment(tier string) {
	if m == nil {
		return
	}
	m.attachments.WithLabelValues(tier).Inc()
	if tier != "remote" {
		m.fallbacks.Add(1)
	}
}

// RecordRateLimited counts a rejected request.
func (m *MetricsService) RecordRateLimited(action string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(action).Inc()
	m.rejected.Add(1)
}

// RecordConflict counts a precondition failure: timestamp, version or race.
func (m *MetricsService) RecordConflict(kind string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(kind).Inc()
	m.conflicted.Add(1)
}

// RecordJob counts one background job attempt.
func (m *MetricsService) RecordJob(queue, outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(queue, outcome).Inc()
}

// Snapshot returns the counters shown by the system check.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		RequestsTotal:   m.requests.Load(),
		CacheHitRatio:   m.hitRatio(),
		RemoteFallbacks: m.fallbacks.Load(),
		RateLimited:     m.rejected.Load(),
		Conflicts:       m.conflicted.Load(),
		Goroutines:      runtime.NumGoroutine(),
		GeneratedAt:     time.Now().UTC(),
	}
}
