// Package observe provides OpenTelemetry observability primitives for the
// changedetection-mcp server.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all server metrics.
const meterName = "github.com/MrWong99/changedetection-mcp"

// Metrics holds all OpenTelemetry metric instruments for the server.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ToolDuration tracks per-invocation tool execution latency. Use with
	// attribute.String("tool", ...).
	ToolDuration metric.Float64Histogram

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	// where status is "success", "error", or "rate_limited".
	ToolCalls metric.Int64Counter

	// RateLimitedRequests counts invocations rejected by admission control.
	RateLimitedRequests metric.Int64Counter

	// UpstreamRequests counts outbound calls to the changedetection.io API.
	// Use with attributes:
	//   attribute.String("endpoint", ...), attribute.String("status", ...)
	UpstreamRequests metric.Int64Counter

	// UpstreamErrors counts failed upstream calls by error kind
	// (attribute.String("kind", ...): "timeout", "connection_refused",
	// "http_status", "unknown").
	UpstreamErrors metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// REST round trips to a local or nearby changedetection.io instance.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ToolDuration, err = m.Float64Histogram("changedetection_mcp.tool.duration",
		metric.WithDescription("Latency of MCP tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("changedetection_mcp.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.RateLimitedRequests, err = m.Int64Counter("changedetection_mcp.rate_limited.requests",
		metric.WithDescription("Total tool invocations rejected by the rate limiter."),
	); err != nil {
		return nil, err
	}
	if met.UpstreamRequests, err = m.Int64Counter("changedetection_mcp.upstream.requests",
		metric.WithDescription("Total changedetection.io API requests by endpoint and status."),
	); err != nil {
		return nil, err
	}
	if met.UpstreamErrors, err = m.Int64Counter("changedetection_mcp.upstream.errors",
		metric.WithDescription("Total failed changedetection.io API requests by error kind."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordToolCall records one completed tool invocation with its duration.
// status should be "success", "error", or "rate_limited".
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, durationSeconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.ToolCalls.Add(ctx, 1, attrs)
	if status == "rate_limited" {
		m.RateLimitedRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
		return
	}
	m.ToolDuration.Record(ctx, durationSeconds, metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordUpstreamRequest records one outbound API call.
// status is "ok" or "error"; kind is empty for successful calls.
func (m *Metrics) RecordUpstreamRequest(ctx context.Context, endpoint, status, kind string) {
	m.UpstreamRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	))
	if kind != "" {
		m.UpstreamErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}
