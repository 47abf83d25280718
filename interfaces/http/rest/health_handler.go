package rest

import (
	"net/http"

	"go.uber.org/zap"

	"rhyolite-backend/pkg/api"
	"rhyolite-backend/pkg/utils"
)

// HealthHandler answers readiness probes.
type HealthHandler struct {
	health HealthChecker
	logger *zap.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(health HealthChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{health: health, logger: logger}
}

// Check handles GET /health. Answers 503 until the database schema exists.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ready, err := h.health.SchemaReady(r.Context())
	if err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		api.Error(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	if !ready {
		api.Error(w, http.StatusServiceUnavailable, "database schema not initialized")
		return
	}

	api.Success(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": utils.NowRFC3339(),
	})
}
