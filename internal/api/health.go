package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// probe is one dependency checked by readiness. A required probe that fails
// takes the service out of rotation; an optional one only degrades it.
type probe struct {
	name     string
	pinger   Pinger
	required bool
}

type HealthHandler struct {
	probes  []probe
	env     string
	version string
}

// NewHealthHandler checks Postgres as required and Redis as optional: without
// Redis the doctor cache reads through to the store and backfill pauses.
func NewHealthHandler(postgres, redis Pinger, env, version string) *HealthHandler {
	return &HealthHandler{
		probes: []probe{
			{name: "postgres", pinger: postgres, required: true},
			{name: "redis", pinger: redis},
		},
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	LivenessResponse
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.base("ok"))
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := ReadinessResponse{
		LivenessResponse: h.base("ok"),
		Dependencies:     make(map[string]string, len(h.probes)),
	}
	code := http.StatusOK

	for _, p := range h.probes {
		if reachable(ctx, p.pinger) {
			resp.Dependencies[p.name] = "ok"
			continue
		}
		resp.Dependencies[p.name] = "down"
		switch {
		case p.required:
			resp.Status = "error"
			code = http.StatusServiceUnavailable
		case resp.Status == "ok":
			resp.Status = "degraded"
		}
	}

	writeJSON(w, code, resp)
}

func (h *HealthHandler) base(status string) LivenessResponse {
	return LivenessResponse{Status: status, Version: h.version, Env: h.env}
}

func reachable(ctx context.Context, p Pinger) bool {
	if p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return p.Ping(ctx) == nil
}
