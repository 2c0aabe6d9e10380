// Package health provides the HTTP liveness and readiness probes served
// alongside the Prometheus scrape endpoint.
//
// Two routes are exposed:
//
//   - /healthz: liveness; returns 200 whenever the process can serve HTTP.
//   - /readyz: readiness; returns 200 only when every registered probe
//     passes, including reachability of the changedetection.io instance.
//
// Responses are JSON objects with a top-level "status" of "ok" or "fail"
// and a "checks" map naming each probe result.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 5 * time.Second

// Probe is a named readiness check. Run returns nil when the dependency is
// healthy and an error describing the failure otherwise.
type Probe struct {
	// Name keys the probe result in the JSON response, e.g. "upstream".
	Name string

	// Run checks the dependency. It must respect context cancellation.
	Run func(ctx context.Context) error
}

// SystemInfoClient is the slice of the upstream client the readiness probe
// needs.
type SystemInfoClient interface {
	SystemInfo(ctx context.Context) (any, error)
}

// Upstream returns a probe that queries the changedetection.io systeminfo
// endpoint. Any error, including an authentication failure, marks the
// server not ready since every tool call would fail the same way.
func Upstream(client SystemInfoClient) Probe {
	return Probe{
		Name: "upstream",
		Run: func(ctx context.Context) error {
			_, err := client.SystemInfo(ctx)
			return err
		},
	}
}

// response is the JSON body for both endpoints.
type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the /healthz and /readyz routes. The probe list is fixed
// at construction and the handler is safe for concurrent use.
type Handler struct {
	probes []Probe
}

// New creates a [Handler] evaluating the given probes, in order, on each
// /readyz request.
func New(probes ...Probe) *Handler {
	p := make([]Probe, len(probes))
	copy(p, probes)
	return &Handler{probes: p}
}

// Healthz always returns 200. A process that answers HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz returns 200 only when every probe passes. Each probe runs under a
// [probeTimeout] deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.probes))
	ready := true

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Run(ctx)
		cancel()

		if err != nil {
			checks[p.Name] = "fail: " + err.Error()
			ready = false
		} else {
			checks[p.Name] = "ok"
		}
	}

	res := response{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the health routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
