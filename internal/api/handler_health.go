package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ryanbastic/go-placebot/internal/circuitbreaker"
)

// Pinger is satisfied by every storage backend and by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter exposes the storage circuit breaker state.
type BreakerReporter interface {
	GetState() circuitbreaker.State
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	backends map[string]Pinger
	breaker  BreakerReporter
	logger   *slog.Logger
}

func NewHealthHandler(backends map[string]Pinger, breaker BreakerReporter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{backends: backends, breaker: breaker, logger: logger}
}

type backendStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

type readyzResponse struct {
	Status   string                   `json:"status"`
	Breaker  string                   `json:"breaker,omitempty"`
	Backends map[string]backendStatus `json:"backends,omitempty"`
}

// Livez is a simple liveness probe: if the process can serve HTTP, it's alive.
func (h *HealthHandler) Livez(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz pings all backends concurrently and reports per-backend status.
// An open storage breaker makes the service unavailable even if pings pass.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := readyzResponse{Status: "ok"}
	healthy := true

	if h.breaker != nil {
		state := h.breaker.GetState()
		resp.Breaker = state.String()
		if state == circuitbreaker.Open {
			healthy = false
		}
	}

	if len(h.backends) > 0 {
		resp.Backends = h.pingAll(r.Context())
		for _, bs := range resp.Backends {
			if bs.Status != "ok" {
				healthy = false
			}
		}
	}

	if !healthy {
		resp.Status = "unavailable"
		h.logger.Warn("readiness check failed", "breaker", resp.Breaker, "backends", resp.Backends)
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) pingAll(ctx context.Context) map[string]backendStatus {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	type result struct {
		name   string
		status backendStatus
	}

	var (
		wg      sync.WaitGroup
		results = make(chan result, len(h.backends))
	)

	for name, p := range h.backends {
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			start := time.Now()
			err := p.Ping(ctx)
			elapsed := time.Since(start)
			if err != nil {
				results <- result{name: name, status: backendStatus{
					Status:    "error",
					LatencyMs: elapsed.Milliseconds(),
					Error:     err.Error(),
				}}
				return
			}
			results <- result{name: name, status: backendStatus{
				Status:    "ok",
				LatencyMs: elapsed.Milliseconds(),
			}}
		}(name, p)
	}

	wg.Wait()
	close(results)

	out := make(map[string]backendStatus, len(h.backends))
	for r := range results {
		out[r.name] = r.status
	}
	return out
}
