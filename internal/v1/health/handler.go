// Package health exposes the Kubernetes-style liveness and readiness probes.
package health

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// StatsSource reports the current registry population. Satisfied by
// *registry.Registry.
type StatsSource interface {
	Stats() (peers, sessions int)
}

// Handler manages health check endpoints
type Handler struct {
	stats StatsSource
}

// NewHandler creates a new health check handler
func NewHandler(stats StatsSource) *Handler {
	return &Handler{stats: stats}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// The server has no external hard dependencies (state is in-memory, Twilio
// failures degrade to empty ICE lists), so readiness reports the registry
// population rather than gating on a backend.
func (h *Handler) Readiness(c *gin.Context) {
	checks := map[string]string{"registry": "healthy"}
	if h.stats != nil {
		peers, sessions := h.stats.Stats()
		checks["peers"] = strconv.Itoa(peers)
		checks["sessions"] = strconv.Itoa(sessions)
	}

	response := ReadinessResponse{
		Status:    "ready",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}
