package cache

import (
	"context"
	"time"
)

// Store is the recommendation cache capability. Implementations are chosen
// at construction: a Redis-backed store when an address is configured and
// reachable, otherwise a null store that always misses. Core logic never
// branches on whether caching is enabled.
type Store interface {
	// GetRecommendations returns the memoized track ids for a (listener,
	// context) pair, or false on miss. Transport failures are misses.
	GetRecommendations(ctx context.Context, listenerID, contextID string) ([]string, bool)

	// PutRecommendations memoizes track ids under a (listener, context)
	// pair with a TTL. Best effort; the return value reports whether the
	// write happened.
	PutRecommendations(ctx context.Context, listenerID, contextID string, trackIDs []string, ttl time.Duration) bool

	// PushRecent prepends an event payload to the capped recent-interaction
	// list for a session or listener.
	PushRecent(ctx context.Context, subjectID string, payload []byte) bool

	// Recent returns up to limit recent-interaction payloads, newest first.
	Recent(ctx context.Context, subjectID string, limit int64) [][]byte

	// Ping reports transport health for the health endpoint.
	Ping(ctx context.Context) error

	Enabled() bool
}
