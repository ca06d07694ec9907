package metrics

import (
	"sync"
	"time"
)

// Collector keeps process-level admission counters behind a mutex. Cheap
// enough to update on every request.
type Collector struct {
	mu sync.RWMutex

	totalRequests    int64
	admittedRequests int64
	rejectedRequests int64
	rateLimitHits    int64
	upstreamFailures int64

	totalResponseTime int64

	startTime time.Time
}

func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
	}
}

// RecordRequest records one completed request and whether the pipeline
// admitted it (any 2xx/3xx counts as admitted).
func (c *Collector) RecordRequest(responseTimeMs int64, statusCode int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++
	c.totalResponseTime += responseTimeMs

	if statusCode >= 200 && statusCode < 400 {
		c.admittedRequests++
	} else {
		c.rejectedRequests++
	}
}

func (c *Collector) RecordRateLimitHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateLimitHits++
}

func (c *Collector) RecordUpstreamFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upstreamFailures++
}

// Snapshot is the JSON shape served by /metrics.
type Snapshot struct {
	UptimeSeconds     int64   `json:"uptime_seconds"`
	TotalRequests     int64   `json:"total_requests"`
	AdmittedRequests  int64   `json:"admitted_requests"`
	RejectedRequests  int64   `json:"rejected_requests"`
	RateLimitHits     int64   `json:"rate_limit_hits"`
	UpstreamFailures  int64   `json:"upstream_failures"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	Timestamp         string  `json:"timestamp"`
}

func (c *Collector) GetSnapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := &Snapshot{
		UptimeSeconds:    int64(time.Since(c.startTime).Seconds()),
		TotalRequests:    c.totalRequests,
		AdmittedRequests: c.admittedRequests,
		RejectedRequests: c.rejectedRequests,
		RateLimitHits:    c.rateLimitHits,
		UpstreamFailures: c.upstreamFailures,
		Timestamp:        time.Now().Format(time.RFC3339),
	}

	if c.totalRequests > 0 {
		snapshot.AvgResponseTimeMs = float64(c.totalResponseTime) / float64(c.totalRequests)
	}

	return snapshot
}

// Uptime reports how long the collector (and so the process) has been up.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}
