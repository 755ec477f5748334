// Package health provides HTTP liveness and readiness handlers for the admin
// server.
//
//   - /healthz — liveness; a process that can serve HTTP is alive.
//   - /readyz  — readiness; 200 only when every registered probe passes,
//     which for the assistant means the listening session is up and the
//     configured backends answer.
//
// Responses are JSON with a top-level "status" and a per-probe "probes" map.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// probeTimeout bounds how long a single readiness probe may take.
const probeTimeout = 5 * time.Second

// Probe is a named readiness check. Run must return nil when the dependency
// is healthy and respect context cancellation.
type Probe struct {
	Name string
	Run  func(ctx context.Context) error
}

type probeResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type response struct {
	Status string                 `json:"status"`
	Probes map[string]probeResult `json:"probes,omitempty"`
}

// Handler serves the health endpoints. The probe list is fixed at
// construction; the handler is safe for concurrent use.
type Handler struct {
	probes []Probe
}

// New creates a [Handler] evaluating the given probes on each /readyz
// request.
func New(probes ...Probe) *Handler {
	p := make([]Probe, len(probes))
	copy(p, probes)
	return &Handler{probes: p}
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz runs all probes concurrently and returns 200 only when every probe
// passes. Each probe gets its own [probeTimeout] deadline derived from the
// request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu      sync.Mutex
		results = make(map[string]probeResult, len(h.probes))
	)

	g, ctx := errgroup.WithContext(r.Context())
	for _, p := range h.probes {
		p := p
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			res := probeResult{Status: "ok"}
			if err := p.Run(probeCtx); err != nil {
				res = probeResult{Status: "fail", Error: err.Error()}
			}
			mu.Lock()
			results[p.Name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resp := response{Status: "ok", Probes: results}
	status := http.StatusOK
	for _, res := range results {
		if res.Status != "ok" {
			resp.Status = "fail"
			status = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
