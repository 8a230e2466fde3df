package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/echoseed/echoseed/internal/config"
	"github.com/echoseed/echoseed/internal/engine"
	"github.com/echoseed/echoseed/internal/services"
	"github.com/echoseed/echoseed/pkg/models"
)

type RecommendationHandler struct {
	logger *logrus.Logger
	cfg    *config.Config
	svc    *services.Services
}

func NewRecommendationHandler(logger *logrus.Logger, cfg *config.Config, svc *services.Services) *RecommendationHandler {
	return &RecommendationHandler{logger: logger, cfg: cfg, svc: svc}
}

// Recommend serves explicit-seed recommendations, e.g. from a playlist.
// A total seed-resolution miss is answered with the popularity fallback
// list rather than an error.
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	var req models.RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST_BODY", "Invalid request body format"))
		return
	}

	result, err := h.svc.Recommendation.Recommend(
		c.Request.Context(), req.ListenerID, req.ContextID, req.Seeds, req.Limit,
	)
	if h.handleEngineError(c, err) {
		return
	}

	if result.Fallback {
		result.Tracks = h.svc.Recommendation.PopularFallback(req.Limit)
	}
	c.JSON(http.StatusOK, result)
}

// RecommendForSession recommends from the session's implicit seed list.
// When the in-process tracker is empty (fresh process), seeds are recovered
// from the Redis recent-interaction mirror before giving up and falling
// back to the popularity list.
func (h *RecommendationHandler) RecommendForSession(c *gin.Context) {
	sid := sessionID(c)
	limit := intQuery(c, "limit", 10)

	seedIDs := h.svc.Sessions.Seeds(sid)
	if len(seedIDs) == 0 {
		seedIDs = h.seedsFromRecent(c, sid)
	}

	seeds := make([]models.SeedInfo, 0, len(seedIDs))
	for _, id := range seedIDs {
		seeds = append(seeds, models.SeedInfo{ID: id})
	}

	result := &models.RecommendationResult{Tracks: []models.Track{}, Fallback: true}
	if len(seeds) > 0 {
		var err error
		result, err = h.svc.Recommendation.Recommend(c.Request.Context(), "", "", seeds, limit)
		if h.handleEngineError(c, err) {
			return
		}
	}

	if result.Fallback || len(result.Tracks) == 0 {
		result.Fallback = true
		result.Tracks = h.svc.Recommendation.PopularFallback(limit)
	}
	c.JSON(http.StatusOK, result)
}

func (h *RecommendationHandler) seedsFromRecent(c *gin.Context, sid string) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, payload := range h.svc.Cache.Recent(c.Request.Context(), sid, int64(h.cfg.Session.MaxSeeds)) {
		var event struct {
			TrackID string `json:"track_id"`
		}
		if err := json.Unmarshal(payload, &event); err != nil || event.TrackID == "" {
			continue
		}
		if _, dup := seen[event.TrackID]; dup {
			continue
		}
		seen[event.TrackID] = struct{}{}
		ids = append(ids, event.TrackID)
	}
	return ids
}

// handleEngineError maps the two engine failure modes onto distinct 503
// payloads so the front controller can render "try again shortly" and
// "service unavailable" differently.
func (h *RecommendationHandler) handleEngineError(c *gin.Context, err error) bool {
	switch err {
	case nil:
		return false
	case engine.ErrNotReady:
		_, progress := h.svc.Engine.Status()
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": gin.H{
				"code":    "NOT_READY",
				"message": "Similarity engine is still building",
			},
			"progress": progress,
		})
	case engine.ErrCatalogUnavailable:
		c.JSON(http.StatusServiceUnavailable, errorResponse("CATALOG_UNAVAILABLE", "Track catalog failed to load"))
	default:
		h.logger.WithError(err).Error("Recommendation request failed")
		c.JSON(http.StatusInternalServerError, errorResponse("RECOMMENDATION_FAILED", "Failed to generate recommendations"))
	}
	return true
}
