package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/echoseed/echoseed/internal/engine"
	"github.com/echoseed/echoseed/pkg/models"
)

type StatusHandler struct {
	logger *logrus.Logger
	engine *engine.Engine
}

func NewStatusHandler(logger *logrus.Logger, eng *engine.Engine) *StatusHandler {
	return &StatusHandler{logger: logger, engine: eng}
}

// Get reports readiness for the loading screen. The first poll is also what
// triggers the index build, so the build only starts once a client is
// actually watching progress; the trigger is idempotent under concurrent
// polls.
func (h *StatusHandler) Get(c *gin.Context) {
	h.engine.EnsureBuild()

	ready, progress := h.engine.Status()
	c.JSON(http.StatusOK, models.StatusResponse{
		Ready:    ready,
		Progress: progress,
	})
}
