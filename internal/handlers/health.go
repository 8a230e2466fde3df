package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/echoseed/echoseed/internal/services"
)

type HealthHandler struct {
	logger        *logrus.Logger
	healthService *services.HealthService
}

func NewHealthHandler(logger *logrus.Logger, healthService *services.HealthService) *HealthHandler {
	return &HealthHandler{
		logger:        logger,
		healthService: healthService,
	}
}

// Check serves orchestration probes. A degraded service still answers 200:
// losing the cache or the event sink must not take the process out of
// rotation while it can still recommend.
func (h *HealthHandler) Check(c *gin.Context) {
	status := h.healthService.CheckHealth()
	c.JSON(healthHTTPStatus(status.Status), status)
}

func healthHTTPStatus(status string) int {
	switch status {
	case "healthy", "degraded":
		return http.StatusOK
	case "unhealthy":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
