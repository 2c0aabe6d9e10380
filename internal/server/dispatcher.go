// Package server contains the tool dispatcher and its MCP protocol wiring.
//
// The [Dispatcher] is the orchestration core: it receives a tool invocation,
// applies rate limiting, routes to the right upstream operation, maps the
// result or error onto the response envelope, and records exactly one metrics
// sample plus one structured log line per invocation regardless of outcome.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/MrWong99/changedetection-mcp/internal/cdio"
	"github.com/MrWong99/changedetection-mcp/internal/metrics"
	"github.com/MrWong99/changedetection-mcp/internal/observe"
	"github.com/MrWong99/changedetection-mcp/internal/ratelimit"
	"github.com/MrWong99/changedetection-mcp/internal/validate"
)

// Version is the server version reported in the get_metrics payload and the
// MCP handshake.
const Version = "1.0.0"

// Error kinds used in failure envelopes.
const (
	kindValidation = "validation_error"
	kindExecution  = "execution_error"
	kindAuth       = "authentication_error"
	kindRateLimit  = "rate_limit_exceeded"
)

// genericErrorMessage replaces execution-error detail outside debug mode so
// internal messages are not leaked to tool callers.
const genericErrorMessage = "An error occurred processing your request"

// Upstream is the set of changedetection.io operations the dispatcher routes
// to. *cdio.Client implements it; tests substitute fakes.
type Upstream interface {
	ListWatches(ctx context.Context) (any, error)
	GetWatch(ctx context.Context, watchID string) (any, error)
	CreateWatch(ctx context.Context, url, tag string) (any, error)
	DeleteWatch(ctx context.Context, watchID string) (any, error)
	TriggerCheck(ctx context.Context, watchID string) (any, error)
	GetHistory(ctx context.Context, watchID string) (any, error)
	SystemInfo(ctx context.Context) (any, error)
}

var _ Upstream = (*cdio.Client)(nil)

// Config assembles the dispatcher's collaborators. Client, Limiter, and
// Collector are required; Metrics is optional.
type Config struct {
	Client    Upstream
	Limiter   *ratelimit.Limiter
	Collector *metrics.Collector

	// Metrics mirrors invocation outcomes into OTel instruments when non-nil.
	Metrics *observe.Metrics

	// MetricsEnabled gates Collector recording (the structured log line is
	// emitted either way).
	MetricsEnabled bool

	// Debug surfaces execution-error detail verbatim instead of the generic
	// message.
	Debug bool
}

// handler executes one routed tool operation.
type handler func(ctx context.Context, args map[string]any) (any, error)

// tool pairs a catalog entry with its handler.
type tool struct {
	def toolDef
	run handler
}

// Dispatcher routes tool invocations to upstream operations. It is safe for
// concurrent use; create instances with [New].
type Dispatcher struct {
	cfg   Config
	tools map[string]tool

	// now is the clock source, replaceable in tests.
	now func() time.Time
}

// New builds a Dispatcher with the full tool table. It fails if a required
// collaborator is missing or a catalog entry has no handler, so wiring
// mistakes surface at startup rather than on first call.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Client == nil {
		return nil, errors.New("server: Config.Client is required")
	}
	if cfg.Limiter == nil {
		return nil, errors.New("server: Config.Limiter is required")
	}
	if cfg.Collector == nil {
		return nil, errors.New("server: Config.Collector is required")
	}

	d := &Dispatcher{
		cfg: cfg,
		now: time.Now,
	}

	handlers := map[string]handler{
		"list_watches": func(ctx context.Context, _ map[string]any) (any, error) {
			return cfg.Client.ListWatches(ctx)
		},
		"get_watch": func(ctx context.Context, args map[string]any) (any, error) {
			return cfg.Client.GetWatch(ctx, stringArg(args, "watch_id"))
		},
		"create_watch": func(ctx context.Context, args map[string]any) (any, error) {
			return cfg.Client.CreateWatch(ctx, stringArg(args, "url"), stringArg(args, "tag"))
		},
		"delete_watch": func(ctx context.Context, args map[string]any) (any, error) {
			return cfg.Client.DeleteWatch(ctx, stringArg(args, "watch_id"))
		},
		"trigger_check": func(ctx context.Context, args map[string]any) (any, error) {
			return cfg.Client.TriggerCheck(ctx, stringArg(args, "watch_id"))
		},
		"get_history": func(ctx context.Context, args map[string]any) (any, error) {
			return cfg.Client.GetHistory(ctx, stringArg(args, "watch_id"))
		},
		"system_info": func(ctx context.Context, _ map[string]any) (any, error) {
			return cfg.Client.SystemInfo(ctx)
		},
		"get_metrics": func(_ context.Context, _ map[string]any) (any, error) {
			return metricsPayload{
				ServerMetrics: cfg.Collector.Snapshot(),
				RateLimiter:   cfg.Limiter.Stats(),
				Version:       Version,
			}, nil
		},
	}

	d.tools = make(map[string]tool, len(handlers))
	for _, def := range toolCatalog() {
		run, ok := handlers[def.name]
		if !ok {
			return nil, fmt.Errorf("server: tool %q has no handler", def.name)
		}
		d.tools[def.name] = tool{def: def, run: run}
	}
	if len(handlers) != len(d.tools) {
		return nil, errors.New("server: handler table does not match tool catalog")
	}

	return d, nil
}

// metricsPayload is the get_metrics tool response.
type metricsPayload struct {
	ServerMetrics metrics.Snapshot `json:"server_metrics"`
	RateLimiter   ratelimit.Stats  `json:"rate_limiter"`
	Version       string           `json:"version"`
}

// Response envelopes. The rate-limited envelope deliberately omits the
// success field; existing consumers depend on that shape.
type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type rateLimitEnvelope struct {
	Error      string  `json:"error"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
}

// Dispatch runs one tool invocation through the full pipeline and returns
// the JSON response envelope. Every path (success, validation failure,
// execution failure, rate limited, unknown tool) records one metrics sample
// and emits one structured log line.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) string {
	start := d.now()
	success := false
	rateLimited := false

	defer func() {
		durationMS := float64(d.now().Sub(start)) / float64(time.Millisecond)
		if rateLimited {
			durationMS = 0
		}
		if d.cfg.MetricsEnabled {
			d.cfg.Collector.Record(name, success, durationMS, rateLimited)
		}
		if d.cfg.Metrics != nil {
			d.cfg.Metrics.RecordToolCall(ctx, name, callStatus(success, rateLimited), durationMS/1000)
		}
		slog.Info("tool call completed",
			"tool", name,
			"duration_ms", math.Round(durationMS*100)/100,
			"success", success,
			"rate_limited", rateLimited,
		)
	}()

	// Admission control. The metrics-introspection tool is never gated.
	if d.cfg.Limiter.Enabled() && name != "get_metrics" {
		allowed, retry := d.cfg.Limiter.Allow(ratelimit.DefaultClient)
		if !allowed {
			rateLimited = true
			retrySec := retry.Seconds()
			slog.Warn("rate limit exceeded", "tool", name, "retry_after", retrySec)
			return marshal(rateLimitEnvelope{
				Error:      kindRateLimit,
				Message:    fmt.Sprintf("Rate limit exceeded. Retry after %.1fs", retrySec),
				RetryAfter: retrySec,
			})
		}
	}

	t, ok := d.tools[name]
	if !ok {
		slog.Warn("unknown tool requested", "tool", name)
		return marshal(errorEnvelope{Error: kindValidation, Message: "unknown tool: " + name})
	}

	// Required arguments short-circuit before any upstream call.
	for _, key := range t.def.requiredArgs {
		if strings.TrimSpace(stringArg(args, key)) == "" {
			slog.Warn("missing required argument", "tool", name, "argument", key)
			return marshal(errorEnvelope{Error: kindValidation, Message: key + " is required"})
		}
	}

	result, err := t.run(ctx, args)
	if err != nil {
		return marshal(d.errorResponse(name, err))
	}

	success = true
	return marshal(successEnvelope{Success: true, Data: result})
}

// errorResponse maps an execution error onto a failure envelope.
//
// Validation failures and rate limiting never carry sensitive detail and are
// surfaced verbatim. Upstream auth rejections get a fixed safe message so
// they stay distinguishable from generic HTTP failures even outside debug
// mode. Everything else is redacted unless debug is on; full detail always
// goes to the log.
func (d *Dispatcher) errorResponse(name string, err error) errorEnvelope {
	var verr *validate.Error
	if errors.As(err, &verr) {
		slog.Warn("validation error", "tool", name, "err", verr.Msg)
		return errorEnvelope{Error: kindValidation, Message: verr.Msg}
	}

	var serr *cdio.StatusError
	if errors.As(err, &serr) && serr.Auth() {
		slog.Error("upstream rejected credentials", "tool", name, "status", serr.Code)
		return errorEnvelope{
			Error:   kindAuth,
			Message: fmt.Sprintf("authentication failed: upstream rejected the API key (HTTP %d)", serr.Code),
		}
	}

	slog.Error("tool execution failed", "tool", name, "err", err)
	msg := genericErrorMessage
	if d.cfg.Debug {
		msg = err.Error()
	}
	return errorEnvelope{Error: kindExecution, Message: msg}
}

// callStatus maps an outcome onto the OTel status attribute value.
func callStatus(success, rateLimited bool) string {
	switch {
	case rateLimited:
		return "rate_limited"
	case success:
		return "success"
	default:
		return "error"
	}
}

// stringArg coerces the named argument to its textual form. Absent or nil
// arguments yield the empty string.
func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// marshal renders an envelope as indented JSON. Envelope types cannot fail
// to marshal except for unrepresentable data values, in which case the error
// itself becomes the response.
func marshal(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return `{"success": false, "error": "execution_error", "message": "failed to encode response"}`
	}
	return string(data)
}
