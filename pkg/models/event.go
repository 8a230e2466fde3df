package models

// Behavioral event types emitted on the read and recommendation paths.
// Events travel as a type tag plus a flat field map; the sink assigns the
// "ts" field (Unix seconds) at publish time.
const (
	EventTrackView            = "track_view"
	EventTrackViewOffline     = "track_view_offline"
	EventRecommendationServed = "recommendation_served"
	EventInteraction          = "interaction"
)
