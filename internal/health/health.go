// Package health serves the liveness and readiness endpoints.
//
// /healthz reports liveness only: a process that can answer HTTP is alive.
// /readyz runs the registered probes and answers 503 until every one of them
// passes, keeping traffic away while recognition models are still loading.
// The response carries a per-probe report with the failure reason and the
// probe's elapsed time.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe. A model warm-up that takes
// longer counts as not ready.
const probeTimeout = 5 * time.Second

// Probe checks one dependency. It returns nil when the dependency is ready
// and must respect context cancellation.
type Probe func(ctx context.Context) error

type probe struct {
	name string
	run  Probe
}

// Handler serves the /healthz and /readyz endpoints. The probe list is fixed
// once serving starts; the handler itself is stateless.
type Handler struct {
	probes []probe
}

// New creates a Handler with no probes. Register probes with [Handler.Add].
func New() *Handler {
	return &Handler{}
}

// Add registers a named readiness probe and returns h for chaining. Probes
// run sequentially in registration order on every /readyz request.
func (h *Handler) Add(name string, run Probe) *Handler {
	h.probes = append(h.probes, probe{name: name, run: run})
	return h
}

// probeReport is the per-probe section of the /readyz response.
type probeReport struct {
	Status    string  `json:"status"`
	Error     string  `json:"error,omitempty"`
	ElapsedMS float64 `json:"elapsed_ms"`
}

// report is the JSON response body for both endpoints.
type report struct {
	Status string                 `json:"status"`
	Probes map[string]probeReport `json:"probes,omitempty"`
}

// Liveness always answers 200. It backs /healthz.
func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readiness runs every registered probe and answers 200 only when all pass.
// Each probe gets a context bounded by probeTimeout, derived from the
// request context. It backs /readyz.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	rep := report{
		Status: "ok",
		Probes: make(map[string]probeReport, len(h.probes)),
	}
	status := http.StatusOK

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		start := time.Now()
		err := p.run(ctx)
		elapsed := time.Since(start)
		cancel()

		pr := probeReport{Status: "ok", ElapsedMS: float64(elapsed.Microseconds()) / 1000}
		if err != nil {
			pr.Status = "fail"
			pr.Error = err.Error()
			rep.Status = "fail"
			status = http.StatusServiceUnavailable
		}
		rep.Probes[p.name] = pr
	}

	writeJSON(w, status, rep)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Liveness)
	mux.HandleFunc("GET /readyz", h.Readiness)
}

// writeJSON encodes v as JSON with the given status code. On encoding
// failure it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
