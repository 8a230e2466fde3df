package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/echoseed/echoseed/internal/services"
)

type EventHandler struct {
	logger *logrus.Logger
	svc    *services.Services
}

func NewEventHandler(logger *logrus.Logger, svc *services.Services) *EventHandler {
	return &EventHandler{logger: logger, svc: svc}
}

// Record ingests a behavioral event from the client. The event feeds three
// near-line consumers, all best-effort: the session seed tracker, the Redis
// recent-interaction list and the event sink. The response reports whether
// the sink actually delivered; callers are not expected to care.
func (h *EventHandler) Record(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST_BODY", "Invalid request body format"))
		return
	}

	if result := h.svc.Validator.ValidateEvent(body); !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_EVENT",
				"message": "Event payload failed validation",
				"details": result.Errors,
			},
		})
		return
	}

	eventType, _ := body["type"].(string)
	fields := make(map[string]interface{}, len(body))
	for k, v := range body {
		if k != "type" {
			fields[k] = v
		}
	}

	sid := sessionID(c)
	fields["session_id"] = sid

	if trackID, _ := fields["track_id"].(string); trackID != "" {
		h.svc.Sessions.RecordView(sid, trackID)
	}

	if payload, err := json.Marshal(withTimestamp(eventType, fields)); err == nil {
		h.svc.Cache.PushRecent(c.Request.Context(), sid, payload)
	}

	delivered := h.svc.EventSink.Publish(eventType, fields)
	h.svc.Metrics.BehavioralEvents.WithLabelValues(eventType, strconv.FormatBool(delivered)).Inc()

	c.JSON(http.StatusOK, gin.H{"status": "ok", "sent": delivered})
}

func withTimestamp(eventType string, fields map[string]interface{}) map[string]interface{} {
	payload := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		payload[k] = v
	}
	payload["type"] = eventType
	payload["ts"] = time.Now().Unix()
	return payload
}
