package session

import (
	"sync"
	"time"
)

// Tracker keeps a bounded, de-duplicated, most-recent-first list of viewed
// track ids per browsing session. It is the implicit seed source when a
// request carries no explicit playlist. Nothing here persists past the
// process; the Redis recent-interaction list covers that separately.
//
// Sessions idle longer than maxIdle are dropped by an opportunistic sweep
// on the write path, keeping the map bounded on long-running processes.
type Tracker struct {
	mu        sync.Mutex
	maxSeeds  int
	maxIdle   time.Duration
	lastSweep time.Time
	sessions  map[string]*sessionEntry
}

type sessionEntry struct {
	seeds    []string
	lastSeen time.Time
}

func NewTracker(maxSeeds int, maxIdle time.Duration) *Tracker {
	if maxSeeds <= 0 {
		maxSeeds = 20
	}
	if maxIdle <= 0 {
		maxIdle = time.Hour
	}
	return &Tracker{
		maxSeeds: maxSeeds,
		maxIdle:  maxIdle,
		sessions: make(map[string]*sessionEntry),
	}
}

// RecordView moves trackID to the front of the session's seed list,
// removing any earlier occurrence, and truncates to the configured bound.
func (t *Tracker) RecordView(sessionID, trackID string) {
	if sessionID == "" || trackID == "" {
		return
	}

	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweep(now)

	entry := t.sessions[sessionID]
	if entry == nil {
		entry = &sessionEntry{}
		t.sessions[sessionID] = entry
	}

	filtered := make([]string, 0, len(entry.seeds)+1)
	filtered = append(filtered, trackID)
	for _, id := range entry.seeds {
		if id != trackID {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) > t.maxSeeds {
		filtered = filtered[:t.maxSeeds]
	}
	entry.seeds = filtered
	entry.lastSeen = now
}

// Seeds returns a copy of the session's seed ids, most recent first.
func (t *Tracker) Seeds(sessionID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.sessions[sessionID]
	if entry == nil {
		return nil
	}
	out := make([]string, len(entry.seeds))
	copy(out, entry.seeds)
	return out
}

// sweep drops sessions idle longer than maxIdle, running at most once per
// quarter of the idle window. Caller holds the lock.
func (t *Tracker) sweep(now time.Time) {
	if now.Sub(t.lastSweep) < t.maxIdle/4 {
		return
	}
	t.lastSweep = now
	for id, entry := range t.sessions {
		if now.Sub(entry.lastSeen) > t.maxIdle {
			delete(t.sessions, id)
		}
	}
}
