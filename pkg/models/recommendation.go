package models

import "time"

// RecommendationRequest is the body of POST /api/v1/recommendations.
// ListenerID and ContextID are optional; when both are set the result is
// memoized in the recommendation cache under that pair.
type RecommendationRequest struct {
	Seeds      []SeedInfo `json:"seeds" binding:"required,min=1,max=100"`
	Limit      int        `json:"limit" binding:"omitempty,min=1,max=200"`
	ListenerID string     `json:"listener_id"`
	ContextID  string     `json:"context_id"`
}

// RecommendationResult is an ordered list of tracks, most similar first.
type RecommendationResult struct {
	Tracks      []Track   `json:"tracks"`
	CacheHit    bool      `json:"cache_hit"`
	Fallback    bool      `json:"fallback"`
	GeneratedAt time.Time `json:"generated_at"`
}

// BuildProgress is the readiness payload polled by the front controller
// while the feature index is being built.
type BuildProgress struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

type StatusResponse struct {
	Ready    bool          `json:"ready"`
	Progress BuildProgress `json:"progress"`
}

type TrackListResponse struct {
	Tracks []Track `json:"tracks"`
	Total  int     `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}
