// Package http provides the HTTP status surface for the resilience core:
// liveness, per-resource circuit breaker health, and error handler
// statistics for operational monitoring.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"newsbot-resilience/internal/observability/logging"
	"newsbot-resilience/internal/resilience/circuitbreaker"
)

// Health status values reported by the resource health endpoint.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// HealthResponse represents the JSON response for the liveness endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ResourceHealthResponse reports the state of every registered circuit
// breaker. Status is "degraded" when any breaker is open or half-open.
type ResourceHealthResponse struct {
	Status    string                          `json:"status"`
	Timestamp string                          `json:"timestamp"`
	Unhealthy []string                        `json:"unhealthy_resources"`
	Resources map[string]circuitbreaker.Stats `json:"resources"`
}

// HealthHandler handles the liveness endpoint. It always reports healthy;
// breaker state is reported separately so that an open breaker does not
// cause orchestrators to restart the process.
type HealthHandler struct {
	Version string
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.Version,
	})
}

// ResourceHealthHandler reports per-resource circuit breaker health.
// Returns 200 OK when all breakers are closed, 503 Service Unavailable
// when any resource is unhealthy.
type ResourceHealthHandler struct {
	Registry *circuitbreaker.Registry
}

// ServeHTTP implements http.Handler.
func (h *ResourceHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	unhealthy := h.Registry.Unhealthy()

	status := StatusHealthy
	code := http.StatusOK
	if len(unhealthy) > 0 {
		status = StatusDegraded
		code = http.StatusServiceUnavailable
		logging.FromContext(r.Context()).Warn("reporting degraded resources",
			slog.Any("unhealthy", unhealthy))
	}

	writeJSON(w, code, ResourceHealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Unhealthy: unhealthy,
		Resources: h.Registry.AllStats(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
