// Package cdio provides the client for the changedetection.io REST API.
//
// Every identifier-bearing operation sanitises and validates its argument
// before any network call is made; a malformed identifier or URL returns a
// [validate.Error] without touching the wire. Transport failures are
// normalised into a small taxonomy ([ErrTimeout], [ErrConnectionRefused],
// [StatusError]) so the dispatcher can map them onto response envelopes.
package cdio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/changedetection-mcp/internal/observe"
	"github.com/MrWong99/changedetection-mcp/internal/validate"
)

const (
	// requestTimeout is the overall deadline for one API call.
	requestTimeout = 30 * time.Second

	// connectTimeout bounds connection establishment.
	connectTimeout = 10 * time.Second

	// tagMaxLength caps watch tags; longer values are truncated on create.
	tagMaxLength = 100
)

// Option is a functional option for configuring the [Client].
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Used in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMetrics enables OTel instrumentation of upstream calls. When nil (the
// default), no instrument is touched.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client calls the changedetection.io REST API. It is safe for concurrent
// use; create instances with [New].
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    *observe.Metrics
}

// New creates a Client for the instance at baseURL. apiKey may be empty, in
// which case no x-api-key header is sent and protected endpoints will fail
// with an upstream auth error.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListWatches returns all configured watches.
func (c *Client) ListWatches(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/api/v1/watch", "/api/v1/watch", nil)
}

// GetWatch returns details for one watch.
func (c *Client) GetWatch(ctx context.Context, watchID string) (any, error) {
	id, err := c.watchID(watchID)
	if err != nil {
		return nil, err
	}
	return c.request(ctx, http.MethodGet, "/api/v1/watch/"+id, "/api/v1/watch/{id}", nil)
}

// CreateWatch registers a new watch for url. tag is optional and truncated
// to 100 characters.
func (c *Client) CreateWatch(ctx context.Context, url, tag string) (any, error) {
	url = validate.Sanitize(url, validate.DefaultMaxLength)
	if !validate.URL(url) {
		return nil, validate.Errorf("invalid URL format: %s", url)
	}

	payload := map[string]string{"url": url}
	if tag != "" {
		payload["tag"] = validate.Sanitize(tag, tagMaxLength)
	}
	return c.request(ctx, http.MethodPost, "/api/v1/watch", "/api/v1/watch", payload)
}

// DeleteWatch removes a watch and stops monitoring it.
func (c *Client) DeleteWatch(ctx context.Context, watchID string) (any, error) {
	id, err := c.watchID(watchID)
	if err != nil {
		return nil, err
	}
	return c.request(ctx, http.MethodDelete, "/api/v1/watch/"+id, "/api/v1/watch/{id}", nil)
}

// TriggerCheck queues an immediate recheck of a watch.
func (c *Client) TriggerCheck(ctx context.Context, watchID string) (any, error) {
	id, err := c.watchID(watchID)
	if err != nil {
		return nil, err
	}
	return c.request(ctx, http.MethodGet, "/api/v1/watch/"+id+"/trigger", "/api/v1/watch/{id}/trigger", nil)
}

// GetHistory returns the change history of a watch.
func (c *Client) GetHistory(ctx context.Context, watchID string) (any, error) {
	id, err := c.watchID(watchID)
	if err != nil {
		return nil, err
	}
	return c.request(ctx, http.MethodGet, "/api/v1/watch/"+id+"/history", "/api/v1/watch/{id}/history", nil)
}

// SystemInfo returns version and state information for the instance.
func (c *Client) SystemInfo(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/api/v1/systeminfo", "/api/v1/systeminfo", nil)
}

// watchID sanitises and validates a watch identifier.
func (c *Client) watchID(raw string) (string, error) {
	id := validate.Sanitize(raw, validate.DefaultMaxLength)
	if !validate.UUID(id) {
		return "", validate.Errorf("invalid watch ID format: %s", id)
	}
	return id, nil
}

// request performs one HTTP call and decodes the JSON response. endpoint is
// the concrete path; label is the path template used for metrics so that
// identifier values do not explode the attribute cardinality.
func (c *Client) request(ctx context.Context, method, endpoint, label string, payload any) (any, error) {
	requestID := uuid.NewString()

	slog.Debug("upstream request",
		"method", method,
		"endpoint", endpoint,
		"request_id", requestID,
	)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("cdio: encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("cdio: build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = classifyTransportErr(err, c.baseURL, requestTimeout.Seconds())
		c.recordRequest(ctx, label, err)
		slog.Error("upstream request failed",
			"method", method,
			"endpoint", endpoint,
			"request_id", requestID,
			"err", err,
		)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("cdio: read response: %w", err)
		c.recordRequest(ctx, label, err)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		c.recordRequest(ctx, label, serr)
		slog.Error("upstream returned error status",
			"method", method,
			"endpoint", endpoint,
			"request_id", requestID,
			"status", resp.StatusCode,
		)
		return nil, serr
	}

	c.recordRequest(ctx, label, nil)
	slog.Debug("upstream request successful",
		"method", method,
		"endpoint", endpoint,
		"request_id", requestID,
	)

	// An empty 2xx body is a valid empty result, not a parse error.
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	var result any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("cdio: decode response: %w", err)
	}
	return result, nil
}

// recordRequest mirrors the call outcome into OTel instruments when enabled.
func (c *Client) recordRequest(ctx context.Context, label string, err error) {
	if c.metrics == nil {
		return
	}
	if err == nil {
		c.metrics.RecordUpstreamRequest(ctx, label, "ok", "")
		return
	}
	c.metrics.RecordUpstreamRequest(ctx, label, "error", errorKind(err))
}
