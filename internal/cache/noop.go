package cache

import (
	"context"
	"errors"
	"time"
)

var errDisabled = errors.New("recommendation cache is disabled")

// noopStore is the null object wired in when Redis is unconfigured or
// unreachable at startup: every get is a miss, every write a cheap no-op.
type noopStore struct{}

func NewNoop() Store { return noopStore{} }

func (noopStore) GetRecommendations(context.Context, string, string) ([]string, bool) {
	return nil, false
}

func (noopStore) PutRecommendations(context.Context, string, string, []string, time.Duration) bool {
	return false
}

func (noopStore) PushRecent(context.Context, string, []byte) bool { return false }

func (noopStore) Recent(context.Context, string, int64) [][]byte { return nil }

func (noopStore) Ping(context.Context) error { return errDisabled }

func (noopStore) Enabled() bool { return false }
