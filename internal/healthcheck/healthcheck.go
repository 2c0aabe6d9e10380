// Package healthcheck implements the standalone deep health probe used by
// container orchestrators and operators. Unlike the lightweight /readyz
// endpoint it validates the full deployment surface: environment
// configuration, changedetection.io API connectivity, DNS resolution of the
// upstream host, and local resource headroom.
package healthcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds the upstream API probe when HEALTH_CHECK_TIMEOUT is
// not set.
const DefaultTimeout = 5 * time.Second

// Overall and per-check statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusSkipped   = "skipped"
)

// Result is the outcome of a single probe. Optional fields are omitted from
// the JSON report when empty.
type Result struct {
	Check          string            `json:"check"`
	Status         string            `json:"status"`
	Details        map[string]string `json:"details,omitempty"`
	ResponseTimeMS float64           `json:"response_time_ms,omitempty"`
	APIVersion     string            `json:"api_version,omitempty"`
	Error          string            `json:"error,omitempty"`
	Message        string            `json:"message,omitempty"`
	Addresses      []string          `json:"addresses,omitempty"`
	HeapAllocMB    float64           `json:"heap_alloc_mb,omitempty"`
	Goroutines     int               `json:"goroutines,omitempty"`
	DiskPercent    float64           `json:"disk_percent,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`

	passed   int
	failed   int
	warnings []string
}

// Summary totals the individual probe outcomes.
type Summary struct {
	Total    int      `json:"total"`
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Warnings []string `json:"warnings,omitempty"`
}

// ServerInfo identifies the binary that produced the report.
type ServerInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
}

// Report is the full health check output, printed as indented JSON by the
// healthcheck binary.
type Report struct {
	Status     string     `json:"status"`
	Timestamp  string     `json:"timestamp"`
	DurationMS float64    `json:"duration_ms"`
	Checks     []Result   `json:"checks"`
	Summary    Summary    `json:"summary"`
	Server     ServerInfo `json:"server"`
}

// Checker runs the probe suite. The zero value is not usable; construct it
// with [New].
type Checker struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	version string

	httpClient *http.Client
	lookupHost func(ctx context.Context, host string) ([]string, error)
	now        func() time.Time
}

// Option customises a [Checker].
type Option func(*Checker)

// WithHTTPClient overrides the HTTP client used for the upstream probe.
func WithHTTPClient(c *http.Client) Option {
	return func(hc *Checker) { hc.httpClient = c }
}

// WithResolver overrides the DNS lookup used for the resolution probe.
func WithResolver(lookup func(ctx context.Context, host string) ([]string, error)) Option {
	return func(hc *Checker) { hc.lookupHost = lookup }
}

// New builds a Checker from the environment: CHANGEDETECTION_URL,
// CHANGEDETECTION_API_KEY and HEALTH_CHECK_TIMEOUT (seconds, default 5).
func New(version string, opts ...Option) *Checker {
	timeout := DefaultTimeout
	if v := os.Getenv("HEALTH_CHECK_TIMEOUT"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			timeout = time.Duration(secs * float64(time.Second))
		}
	}
	baseURL := os.Getenv("CHANGEDETECTION_URL")
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}

	hc := &Checker{
		baseURL:    baseURL,
		apiKey:     os.Getenv("CHANGEDETECTION_API_KEY"),
		timeout:    timeout,
		version:    version,
		lookupHost: net.DefaultResolver.LookupHost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(hc)
	}
	if hc.httpClient == nil {
		hc.httpClient = &http.Client{Timeout: hc.timeout}
	}
	return hc
}

// Run executes all probes concurrently and aggregates them into a Report.
// The overall status is unhealthy if any probe is unhealthy, else degraded
// if any probe is degraded, else healthy.
func (hc *Checker) Run(ctx context.Context) Report {
	start := hc.now()

	results := make([]Result, 4)
	var mu sync.Mutex
	set := func(i int, r Result) {
		mu.Lock()
		results[i] = r
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { set(0, hc.checkEnvironment()); return nil })
	g.Go(func() error { set(1, hc.checkUpstream(ctx)); return nil })
	g.Go(func() error { set(2, hc.checkDNS(ctx)); return nil })
	g.Go(func() error { set(3, hc.checkResources()); return nil })
	g.Wait()

	summary := Summary{}
	overall := StatusHealthy
	for _, r := range results {
		summary.Passed += r.passed
		summary.Failed += r.failed
		summary.Warnings = append(summary.Warnings, r.warnings...)
		switch r.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall != StatusUnhealthy {
				overall = StatusDegraded
			}
		}
	}
	summary.Total = summary.Passed + summary.Failed

	return Report{
		Status:     overall,
		Timestamp:  start.UTC().Format(time.RFC3339),
		DurationMS: round2(float64(hc.now().Sub(start)) / float64(time.Millisecond)),
		Checks:     results,
		Summary:    summary,
		Server: ServerInfo{
			Version:   hc.version,
			GoVersion: runtime.Version(),
		},
	}
}

// checkEnvironment verifies the required environment variables are present
// and warns about unset optional ones.
func (hc *Checker) checkEnvironment() Result {
	r := Result{
		Check:   "environment",
		Status:  StatusHealthy,
		Details: map[string]string{},
	}

	for _, v := range []string{"CHANGEDETECTION_URL", "CHANGEDETECTION_API_KEY"} {
		if os.Getenv(v) == "" {
			r.Details[v] = "missing"
			r.Status = StatusUnhealthy
			r.failed++
		} else {
			r.Details[v] = "configured"
			r.passed++
		}
	}

	for _, v := range []string{"LOG_LEVEL", "RATE_LIMIT_ENABLED", "ENABLE_METRICS"} {
		if os.Getenv(v) == "" {
			r.warnings = append(r.warnings, v+" not set, using defaults")
		}
	}
	return r
}

// checkUpstream probes the changedetection.io systeminfo endpoint and
// classifies the outcome the same way the server's tool calls do.
func (hc *Checker) checkUpstream(ctx context.Context) Result {
	r := Result{Check: "changedetection_api"}
	start := hc.now()

	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.baseURL+"/api/v1/systeminfo", nil)
	if err != nil {
		r.Status = StatusUnhealthy
		r.Error = "unknown_error"
		r.Message = err.Error()
		r.failed++
		return r
	}
	if hc.apiKey != "" {
		req.Header.Set("x-api-key", hc.apiKey)
	}

	resp, err := hc.httpClient.Do(req)
	elapsed := round2(float64(hc.now().Sub(start)) / float64(time.Millisecond))
	if err != nil {
		r.Status = StatusUnhealthy
		r.failed++
		switch {
		case isTimeout(err):
			r.Error = "timeout"
			r.Message = fmt.Sprintf("Request timed out after %gs", hc.timeout.Seconds())
		case isConnRefused(err):
			r.Error = "connection_refused"
			r.Message = fmt.Sprintf("Cannot connect to %s", hc.baseURL)
		default:
			r.Error = "unknown_error"
			r.Message = err.Error()
		}
		return r
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		r.Status = StatusHealthy
		r.ResponseTimeMS = elapsed
		r.APIVersion = "unknown"
		var body struct {
			Version string `json:"version"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Version != "" {
			r.APIVersion = body.Version
		}
		r.passed++
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		r.Status = StatusUnhealthy
		r.Error = "authentication_failed"
		r.Message = "Invalid or missing API key"
		r.failed++
	default:
		r.Status = StatusUnhealthy
		r.Error = fmt.Sprintf("http_error_%d", resp.StatusCode)
		r.ResponseTimeMS = elapsed
		r.failed++
	}
	return r
}

// checkDNS resolves the upstream host. Literal IPs and localhost pass
// without a lookup.
func (hc *Checker) checkDNS(ctx context.Context) Result {
	r := Result{Check: "dns_resolution"}

	u, err := url.Parse(hc.baseURL)
	if err != nil || u.Hostname() == "" {
		r.Status = StatusUnhealthy
		r.Error = "invalid_url"
		r.Message = fmt.Sprintf("Cannot parse upstream URL %q", hc.baseURL)
		r.failed++
		return r
	}
	host := u.Hostname()

	if host == "localhost" || net.ParseIP(host) != nil {
		r.Status = StatusHealthy
		r.Addresses = []string{host}
		r.passed++
		return r
	}

	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	addrs, err := hc.lookupHost(ctx, host)
	if err != nil {
		r.Status = StatusUnhealthy
		r.Error = "dns_failure"
		r.Message = fmt.Sprintf("Cannot resolve %s: %v", host, err)
		r.failed++
		return r
	}
	r.Status = StatusHealthy
	r.Addresses = addrs
	r.passed++
	return r
}

// checkResources reports process memory and goroutine counts and, where the
// platform supports it, disk usage of the working directory. Disk above 90%
// degrades the check without failing it.
func (hc *Checker) checkResources() Result {
	r := Result{Check: "system_resources", Status: StatusHealthy}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	r.HeapAllocMB = round2(float64(ms.HeapAlloc) / (1 << 20))
	r.Goroutines = runtime.NumGoroutine()

	percent, err := diskUsagePercent(".")
	if err != nil {
		r.Status = StatusSkipped
		r.Message = "disk usage unavailable: " + err.Error()
		return r
	}
	r.DiskPercent = round2(percent)
	if percent > 90 {
		r.Status = StatusDegraded
		r.Warnings = append(r.Warnings, "High disk usage")
		r.warnings = append(r.warnings, "High disk usage")
		return r
	}
	r.passed++
	return r
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
