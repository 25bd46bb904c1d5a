package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// ReadinessReporter is the payment gateway's loaded flag.
type ReadinessReporter interface {
	Ready() bool
}

// StatsReporter exposes session registry counters.
type StatsReporter interface {
	Stats() map[string]interface{}
}

// HealthHandler provides health check endpoint
type HealthHandler struct {
	logger  *slog.Logger
	gateway ReadinessReporter
	stats   StatsReporter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(logger *slog.Logger, gateway ReadinessReporter, stats StatsReporter) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		gateway: gateway,
		stats:   stats,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string                 `json:"status"`
	Timestamp    time.Time              `json:"timestamp"`
	Version      string                 `json:"version"`
	GatewayReady bool                   `json:"gatewayReady"`
	Sessions     map[string]interface{} `json:"sessions,omitempty"`
}

// ServeHTTP handles health check requests. The service stays healthy while
// the gateway warms up; pay requests are refused until it is ready.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
	}
	if h.gateway != nil {
		response.GatewayReady = h.gateway.Ready()
	}
	if h.stats != nil {
		response.Sessions = h.stats.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode health response", "error", err)
	}
}
