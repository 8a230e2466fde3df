package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/echoseed/echoseed/internal/catalog"
	"github.com/echoseed/echoseed/internal/config"
	"github.com/echoseed/echoseed/internal/services"
	"github.com/echoseed/echoseed/pkg/models"
)

type TrackHandler struct {
	logger *logrus.Logger
	cfg    *config.Config
	svc    *services.Services
}

func NewTrackHandler(logger *logrus.Logger, cfg *config.Config, svc *services.Services) *TrackHandler {
	return &TrackHandler{logger: logger, cfg: cfg, svc: svc}
}

// List serves the catalog browsing read path over the immutable snapshot.
func (h *TrackHandler) List(c *gin.Context) {
	if h.svc.Catalog == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("CATALOG_UNAVAILABLE", "Track catalog failed to load"))
		return
	}

	limit := intQuery(c, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	page := intQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}

	opts := catalog.ListOptions{
		Genre:  c.Query("genre"),
		Year:   intQuery(c, "year", 0),
		Search: c.Query("q"),
		SortBy: c.DefaultQuery("sort", "popularity"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	tracks, total := h.svc.Catalog.List(opts)
	c.JSON(http.StatusOK, models.TrackListResponse{
		Tracks: tracks,
		Total:  total,
		Page:   page,
		Limit:  limit,
	})
}

// Get returns one track and records the view as implicit taste signal: the
// session seed list, the Redis recent list and the event sink all hear
// about it, every one best-effort.
func (h *TrackHandler) Get(c *gin.Context) {
	if h.svc.Catalog == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("CATALOG_UNAVAILABLE", "Track catalog failed to load"))
		return
	}

	trackID := c.Param("id")
	track, ok := h.svc.Catalog.ByID(trackID)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("TRACK_NOT_FOUND", "Track is not in the catalog"))
		return
	}

	h.recordView(c, trackID)
	c.JSON(http.StatusOK, track)
}

// Features resolves audio features by the (name, artist) fallback used when
// a caller has no catalog id.
func (h *TrackHandler) Features(c *gin.Context) {
	if h.svc.Catalog == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("CATALOG_UNAVAILABLE", "Track catalog failed to load"))
		return
	}

	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, errorResponse("MISSING_NAME", "Query parameter 'name' is required"))
		return
	}

	track, ok := h.svc.Catalog.ByNameArtist(name, c.Query("artist"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("TRACK_NOT_FOUND", "No track matches that name and artist"))
		return
	}

	c.JSON(http.StatusOK, track)
}

func (h *TrackHandler) recordView(c *gin.Context, trackID string) {
	sid := sessionID(c)
	h.svc.Sessions.RecordView(sid, trackID)

	payload, err := json.Marshal(map[string]interface{}{
		"track_id": trackID,
		"type":     models.EventTrackViewOffline,
		"ts":       time.Now().Unix(),
	})
	if err == nil {
		h.svc.Cache.PushRecent(c.Request.Context(), sid, payload)
	}

	delivered := h.svc.EventSink.Publish(models.EventTrackViewOffline, map[string]interface{}{
		"track_id":   trackID,
		"session_id": sid,
		"source":     "track_detail",
	})
	h.svc.Metrics.BehavioralEvents.WithLabelValues(models.EventTrackViewOffline, strconv.FormatBool(delivered)).Inc()
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
