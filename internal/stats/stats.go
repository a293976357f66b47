// Package stats provides request and catalog statistics backed by Prometheus.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// Collector collects attempt, request and catalog statistics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	startTime time.Time
	registry  *prometheus.Registry

	attempts       *prometheus.CounterVec
	requests       *prometheus.CounterVec
	acquisitions   *prometheus.CounterVec
	cacheWrites    *prometheus.CounterVec
	trackerSkips   prometheus.Counter
	trackerReduces prometheus.Counter
	invokeLatency  prometheus.Histogram
	requestCount   atomic.Int64
	tokenCount     atomic.Int64
	errorCount     atomic.Int64
	totalDurationN atomic.Int64
}

// NewCollector creates a collector registered on its own registry.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Invocation attempts by outcome and access method",
			},
			[]string{"outcome", "access_method"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Logical requests by result",
			},
			[]string{"result"},
		),
		acquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_acquisitions_total",
				Help:      "Catalog acquisitions by source",
			},
			[]string{"source"},
		),
		cacheWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_writes_total",
				Help:      "Catalog cache writes by result (primary, fallback, memory_only)",
			},
			[]string{"result"},
		),
		trackerSkips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracker_skips_total",
				Help:      "Candidates skipped because their parameters are known incompatible",
			},
		),
		trackerReduces: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracker_reductions_total",
				Help:      "Candidates sent without fields known to be rejected",
			},
		),
		invokeLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invoke_latency_seconds",
				Help:      "Latency of single invocation attempts",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
	}

	c.registry.MustRegister(c.attempts, c.requests, c.acquisitions, c.cacheWrites, c.trackerSkips, c.trackerReduces, c.invokeLatency)
	return c
}

// Registry returns the registry holding this collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordAttempt records one invocation attempt.
func (c *Collector) RecordAttempt(outcome protocol.OutcomeKind, method protocol.AccessMethod, d time.Duration) {
	if c == nil {
		return
	}
	c.attempts.WithLabelValues(string(outcome), string(method)).Inc()
	c.invokeLatency.Observe(d.Seconds())
}

// RecordRequest records a completed logical request.
func (c *Collector) RecordRequest(success bool, tokens int, d time.Duration) {
	if c == nil {
		return
	}
	result := "success"
	if !success {
		result = "exhausted"
		c.errorCount.Add(1)
	}
	c.requests.WithLabelValues(result).Inc()
	c.requestCount.Add(1)
	c.tokenCount.Add(int64(tokens))
	c.totalDurationN.Add(d.Nanoseconds())
}

// RecordAcquisition records which source produced a catalog.
func (c *Collector) RecordAcquisition(source protocol.CatalogSource) {
	if c == nil {
		return
	}
	c.acquisitions.WithLabelValues(string(source)).Inc()
}

// RecordCacheWrite records the outcome of a cache save.
func (c *Collector) RecordCacheWrite(result string) {
	if c == nil {
		return
	}
	c.cacheWrites.WithLabelValues(result).Inc()
}

// RecordTrackerSkip records a candidate skipped by the parameter tracker.
func (c *Collector) RecordTrackerSkip() {
	if c == nil {
		return
	}
	c.trackerSkips.Inc()
}

// RecordTrackerReduction records a candidate sent without the fields the
// parameter tracker knows are rejected.
func (c *Collector) RecordTrackerReduction() {
	if c == nil {
		return
	}
	c.trackerReduces.Inc()
}

// Snapshot is a point-in-time summary.
type Snapshot struct {
	Uptime       string  `json:"uptime"`
	RequestCount int64   `json:"request_count"`
	TokenCount   int64   `json:"token_count"`
	ErrorCount   int64   `json:"error_count"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Collect returns current request statistics.
func (c *Collector) Collect() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	requests := c.requestCount.Load()
	avg := float64(0)
	if requests > 0 {
		avg = float64(c.totalDurationN.Load()) / float64(requests) / 1e6
	}
	return Snapshot{
		Uptime:       time.Since(c.startTime).String(),
		RequestCount: requests,
		TokenCount:   c.tokenCount.Load(),
		ErrorCount:   c.errorCount.Load(),
		AvgLatencyMs: avg,
	}
}
