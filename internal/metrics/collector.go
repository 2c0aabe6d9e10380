// Package metrics implements the in-memory request statistics store exposed
// through the get_metrics introspection tool.
//
// The [Collector] accumulates monotonically for the process lifetime and is
// safe for concurrent use. It is deliberately separate from the OpenTelemetry
// instruments in internal/observe: this store backs the tool-visible
// snapshot, the OTel instruments back the /metrics scrape endpoint.
package metrics

import (
	"math"
	"sync"
	"time"
)

// ToolStats aggregates invocations of a single tool.
type ToolStats struct {
	Count      int64   `json:"count"`
	Errors     int64   `json:"errors"`
	DurationMS float64 `json:"duration_ms"`
}

// RequestStats aggregates all invocations.
type RequestStats struct {
	Total       int64   `json:"total"`
	Success     int64   `json:"success"`
	Failed      int64   `json:"failed"`
	RateLimited int64   `json:"rate_limited"`
	SuccessRate float64 `json:"success_rate"`
}

// PerformanceStats holds duration aggregates across all successful and failed
// invocations.
type PerformanceStats struct {
	AvgDurationMS   float64 `json:"avg_duration_ms"`
	TotalDurationMS float64 `json:"total_duration_ms"`
}

// Snapshot is a point-in-time view of all collected metrics.
type Snapshot struct {
	UptimeSeconds float64              `json:"uptime_seconds"`
	Requests      RequestStats         `json:"requests"`
	Performance   PerformanceStats     `json:"performance"`
	ByTool        map[string]ToolStats `json:"by_tool"`
}

// Collector accumulates request metrics. Create instances with [New].
type Collector struct {
	mu sync.Mutex

	total           int64
	success         int64
	failed          int64
	rateLimited     int64
	totalDurationMS float64
	byTool          map[string]*ToolStats

	startTime time.Time

	// now is the clock source, replaceable in tests.
	now func() time.Time
}

// New returns an empty Collector with its uptime clock started.
func New() *Collector {
	c := &Collector{
		byTool: make(map[string]*ToolStats),
		now:    time.Now,
	}
	c.startTime = c.now()
	return c
}

// Record stores one completed invocation of tool.
//
// Rate-limited invocations increment only the total and rate-limited
// counters; they contribute neither to success/failure counts nor to
// duration aggregates. All other invocations accumulate their duration into
// both the global and per-tool totals, and failures additionally increment
// the per-tool error count.
func (c *Collector) Record(tool string, success bool, durationMS float64, rateLimited bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++

	if rateLimited {
		c.rateLimited++
		return
	}

	if success {
		c.success++
	} else {
		c.failed++
	}
	c.totalDurationMS += durationMS

	ts, ok := c.byTool[tool]
	if !ok {
		ts = &ToolStats{}
		c.byTool[tool] = ts
	}
	ts.Count++
	ts.DurationMS += durationMS
	if !success {
		ts.Errors++
	}
}

// Snapshot computes the current metrics view. Success rate is
// success/total×100 (0 when no requests were recorded) and average duration
// is totalDuration/success (0 when no request succeeded).
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var successRate float64
	if c.total > 0 {
		successRate = round2(float64(c.success) / float64(c.total) * 100)
	}
	var avg float64
	if c.success > 0 {
		avg = round2(c.totalDurationMS / float64(c.success))
	}

	byTool := make(map[string]ToolStats, len(c.byTool))
	for name, ts := range c.byTool {
		byTool[name] = *ts
	}

	return Snapshot{
		UptimeSeconds: round2(c.now().Sub(c.startTime).Seconds()),
		Requests: RequestStats{
			Total:       c.total,
			Success:     c.success,
			Failed:      c.failed,
			RateLimited: c.rateLimited,
			SuccessRate: successRate,
		},
		Performance: PerformanceStats{
			AvgDurationMS:   avg,
			TotalDurationMS: round2(c.totalDurationMS),
		},
		ByTool: byTool,
	}
}

// round2 rounds v to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
