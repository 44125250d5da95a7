package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/services"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

type HealthHandler struct {
	log       *logger.Logger
	healthSvc services.HealthService
}

func NewHealthHandler(log *logger.Logger, healthSvc services.HealthService) *HealthHandler {
	return &HealthHandler{
		log:       log.With("handler", "HealthHandler"),
		healthSvc: healthSvc,
	}
}

// GET /healthz
// 503 only when some component is critical; degraded-but-usable stays 200.
func (h *HealthHandler) Check(c *gin.Context) {
	health := h.healthSvc.CheckAll(c.Request.Context())
	status := http.StatusOK
	if health.Status == types.HealthCritical {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}
