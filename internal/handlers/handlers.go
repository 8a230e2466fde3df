package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/echoseed/echoseed/internal/config"
	"github.com/echoseed/echoseed/internal/services"
)

const sessionHeader = "X-Session-ID"

type Handlers struct {
	Status         *StatusHandler
	Health         *HealthHandler
	Tracks         *TrackHandler
	Recommendation *RecommendationHandler
	Events         *EventHandler
}

func New(logger *logrus.Logger, cfg *config.Config, svc *services.Services) *Handlers {
	return &Handlers{
		Status:         NewStatusHandler(logger, svc.Engine),
		Health:         NewHealthHandler(logger, svc.Health),
		Tracks:         NewTrackHandler(logger, cfg, svc),
		Recommendation: NewRecommendationHandler(logger, cfg, svc),
		Events:         NewEventHandler(logger, svc),
	}
}

// sessionID returns the caller's session identity from the X-Session-ID
// header or session_id query, minting one when absent. The id is echoed on
// the response header so anonymous browsers keep a stable identity.
func sessionID(c *gin.Context) string {
	id := c.GetHeader(sessionHeader)
	if id == "" {
		id = c.Query("session_id")
	}
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(sessionHeader, id)
	return id
}

func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
