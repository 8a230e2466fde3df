package services

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoseed/echoseed/internal/catalog"
	"github.com/echoseed/echoseed/internal/config"
	"github.com/echoseed/echoseed/internal/engine"
	"github.com/echoseed/echoseed/pkg/models"
)

// fakeCache is an in-memory cache.Store that records writes.
type fakeCache struct {
	entries map[string][]string
	puts    int
	lastTTL time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]string)}
}

func (f *fakeCache) key(listenerID, contextID string) string {
	return listenerID + ":" + contextID
}

func (f *fakeCache) GetRecommendations(_ context.Context, listenerID, contextID string) ([]string, bool) {
	ids, ok := f.entries[f.key(listenerID, contextID)]
	return ids, ok
}

func (f *fakeCache) PutRecommendations(_ context.Context, listenerID, contextID string, trackIDs []string, ttl time.Duration) bool {
	f.entries[f.key(listenerID, contextID)] = trackIDs
	f.puts++
	f.lastTTL = ttl
	return true
}

func (f *fakeCache) PushRecent(context.Context, string, []byte) bool { return true }

func (f *fakeCache) Recent(context.Context, string, int64) [][]byte { return nil }

func (f *fakeCache) Ping(context.Context) error { return nil }

func (f *fakeCache) Enabled() bool { return true }

// fakeSink records published events.
type fakeSink struct {
	published []string
}

func (f *fakeSink) Publish(eventType string, _ map[string]interface{}) bool {
	f.published = append(f.published, eventType)
	return true
}

func (f *fakeSink) Enabled() bool { return true }

func (f *fakeSink) Close() error { return nil }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testTracks() []models.Track {
	mk := func(id, name, artist string, popularity int, dance, energy float64) models.Track {
		var f models.FeatureVector
		f.Set(models.FeatureDanceability, dance)
		f.Set(models.FeatureEnergy, energy)
		return models.Track{ID: id, Name: name, Artist: artist, Genre: "test", Year: 2020, Popularity: popularity, Features: f}
	}
	return []models.Track{
		mk("a", "Alpha", "Ada", 50, 0.8, 0.2),
		mk("b", "Beta", "Bob", 90, 0.1, 0.9),
		mk("c", "Gamma", "Cleo", 40, 0.75, 0.25),
	}
}

func recommendationConfig() *config.RecommendationConfig {
	return &config.RecommendationConfig{
		DefaultLimit: 10,
		MaxLimit:     50,
		CacheTTL:     15 * time.Minute,
	}
}

func newTestService(t *testing.T, store *catalog.Store, cacheStore *fakeCache, sink *fakeSink) (*RecommendationService, *engine.Engine) {
	t.Helper()
	logger := testLogger()
	eng := engine.New(store, logger, nil)
	svc := NewRecommendationService(store, eng, cacheStore, sink, recommendationConfig(), logger, NewMetrics(logger))
	return svc, eng
}

func awaitState(t *testing.T, eng *engine.Engine, want engine.State) {
	t.Helper()
	eng.EnsureBuild()
	require.Eventually(t, func() bool {
		return eng.CurrentState() == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRecommend_ComputeAndMemoize(t *testing.T) {
	store := catalog.NewFromTracks(testTracks())
	cacheStore := newFakeCache()
	sink := &fakeSink{}
	svc, eng := newTestService(t, store, cacheStore, sink)
	awaitState(t, eng, engine.StateReady)

	result, err := svc.Recommend(context.Background(), "l1", "home", []models.SeedInfo{{ID: "a"}}, 2)
	require.NoError(t, err)
	require.Len(t, result.Tracks, 2)
	assert.False(t, result.CacheHit)
	assert.False(t, result.Fallback)
	assert.Equal(t, "c", result.Tracks[0].ID)

	// Computed result was written back under the (listener, context) pair.
	assert.Equal(t, 1, cacheStore.puts)
	assert.Equal(t, 15*time.Minute, cacheStore.lastTTL)
	assert.Equal(t, []string{"c", "b"}, cacheStore.entries["l1:home"])

	assert.Equal(t, []string{models.EventRecommendationServed}, sink.published)
}

func TestRecommend_CacheHit(t *testing.T) {
	store := catalog.NewFromTracks(testTracks())
	cacheStore := newFakeCache()
	sink := &fakeSink{}
	svc, eng := newTestService(t, store, cacheStore, sink)
	awaitState(t, eng, engine.StateReady)

	cacheStore.entries["l1:home"] = []string{"b", "gone", "a"}

	result, err := svc.Recommend(context.Background(), "l1", "home", nil, 10)
	require.NoError(t, err)
	assert.True(t, result.CacheHit)

	// Cached order is preserved; ids missing from the snapshot are dropped.
	require.Len(t, result.Tracks, 2)
	assert.Equal(t, "b", result.Tracks[0].ID)
	assert.Equal(t, "a", result.Tracks[1].ID)

	// A hit never writes back.
	assert.Equal(t, 0, cacheStore.puts)
	assert.Equal(t, []string{models.EventRecommendationServed}, sink.published)
}

func TestRecommend_AnonymousSkipsCache(t *testing.T) {
	store := catalog.NewFromTracks(testTracks())
	cacheStore := newFakeCache()
	svc, eng := newTestService(t, store, cacheStore, &fakeSink{})
	awaitState(t, eng, engine.StateReady)

	tests := []struct {
		name       string
		listenerID string
		contextID  string
	}{
		{"no listener", "", "home"},
		{"no context", "l1", ""},
		{"neither", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cacheStore.entries["l1:home"] = []string{"b"}

			result, err := svc.Recommend(context.Background(), tt.listenerID, tt.contextID, []models.SeedInfo{{ID: "a"}}, 2)
			require.NoError(t, err)
			assert.False(t, result.CacheHit)
			assert.Equal(t, 0, cacheStore.puts)
		})
	}
}

func TestRecommend_EmptySeedsFallbackFlag(t *testing.T) {
	store := catalog.NewFromTracks(testTracks())
	svc, eng := newTestService(t, store, newFakeCache(), &fakeSink{})
	awaitState(t, eng, engine.StateReady)

	result, err := svc.Recommend(context.Background(), "l1", "home", []models.SeedInfo{{ID: "unknown"}}, 5)
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Empty(t, result.Tracks)
}

func TestRecommend_EngineErrorsPassThrough(t *testing.T) {
	t.Run("not ready before build", func(t *testing.T) {
		store := catalog.NewFromTracks(testTracks())
		svc, _ := newTestService(t, store, newFakeCache(), &fakeSink{})

		_, err := svc.Recommend(context.Background(), "l1", "home", []models.SeedInfo{{ID: "a"}}, 5)
		assert.ErrorIs(t, err, engine.ErrNotReady)
	})

	t.Run("catalog unavailable after failed build", func(t *testing.T) {
		svc, eng := newTestService(t, nil, newFakeCache(), &fakeSink{})
		awaitState(t, eng, engine.StateFailed)

		_, err := svc.Recommend(context.Background(), "l1", "home", []models.SeedInfo{{ID: "a"}}, 5)
		assert.ErrorIs(t, err, engine.ErrCatalogUnavailable)
	})

	t.Run("cache hit with unavailable catalog", func(t *testing.T) {
		// A stale cache entry must not let the request reach the nil
		// catalog; the failure mode stays catalog-unavailable.
		cacheStore := newFakeCache()
		cacheStore.entries["l1:home"] = []string{"a", "b"}
		svc, _ := newTestService(t, nil, cacheStore, &fakeSink{})

		result, err := svc.Recommend(context.Background(), "l1", "home", nil, 5)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, engine.ErrCatalogUnavailable)
	})

	t.Run("cache hit answers even when the engine is down", func(t *testing.T) {
		store := catalog.NewFromTracks(testTracks())
		cacheStore := newFakeCache()
		cacheStore.entries["l1:home"] = []string{"a"}
		svc, _ := newTestService(t, store, cacheStore, &fakeSink{})

		result, err := svc.Recommend(context.Background(), "l1", "home", nil, 5)
		require.NoError(t, err)
		assert.True(t, result.CacheHit)
		require.Len(t, result.Tracks, 1)
		assert.Equal(t, "a", result.Tracks[0].ID)
	})
}

func TestRecommend_LimitClamping(t *testing.T) {
	store := catalog.NewFromTracks(testTracks())
	svc, eng := newTestService(t, store, newFakeCache(), &fakeSink{})
	awaitState(t, eng, engine.StateReady)

	t.Run("zero limit uses the default", func(t *testing.T) {
		result, err := svc.Recommend(context.Background(), "", "", []models.SeedInfo{{ID: "a"}}, 0)
		require.NoError(t, err)
		assert.Len(t, result.Tracks, 2) // default 10 capped by catalog size
	})

	t.Run("oversized limit is capped", func(t *testing.T) {
		result, err := svc.Recommend(context.Background(), "", "", []models.SeedInfo{{ID: "a"}}, 10000)
		require.NoError(t, err)
		assert.Len(t, result.Tracks, 2)
	})

	t.Run("cache hits honor the clamped limit", func(t *testing.T) {
		cacheStore := newFakeCache()
		cacheStore.entries["l1:home"] = []string{"a", "b", "c"}
		svcCached, engCached := newTestService(t, store, cacheStore, &fakeSink{})
		awaitState(t, engCached, engine.StateReady)

		result, err := svcCached.Recommend(context.Background(), "l1", "home", nil, 2)
		require.NoError(t, err)
		assert.Len(t, result.Tracks, 2)
	})
}

func TestPopularFallback(t *testing.T) {
	store := catalog.NewFromTracks(testTracks())
	svc, _ := newTestService(t, store, newFakeCache(), &fakeSink{})

	tracks := svc.PopularFallback(2)
	require.Len(t, tracks, 2)
	assert.Equal(t, "b", tracks[0].ID) // popularity 90
	assert.Equal(t, "a", tracks[1].ID)

	t.Run("nil catalog yields an empty list", func(t *testing.T) {
		svcNil, _ := newTestService(t, nil, newFakeCache(), &fakeSink{})
		assert.Empty(t, svcNil.PopularFallback(5))
	})
}

func TestHealthService(t *testing.T) {
	t.Run("healthy once the engine is ready", func(t *testing.T) {
		store := catalog.NewFromTracks(testTracks())
		logger := testLogger()
		eng := engine.New(store, logger, nil)
		eng.EnsureBuild()
		require.Eventually(t, func() bool {
			return eng.CurrentState() == engine.StateReady
		}, 2*time.Second, 5*time.Millisecond)

		health := NewHealthService(logger, store, eng, newFakeCache(), &fakeSink{})
		status := health.CheckHealth()
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "healthy", status.Services["engine"])
		assert.Empty(t, status.Critical)
	})

	t.Run("building engine is not a failure", func(t *testing.T) {
		store := catalog.NewFromTracks(testTracks())
		logger := testLogger()
		eng := engine.New(store, logger, nil)

		health := NewHealthService(logger, store, eng, newFakeCache(), &fakeSink{})
		status := health.CheckHealth()
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "building", status.Services["engine"])
	})

	t.Run("missing catalog is critical", func(t *testing.T) {
		logger := testLogger()
		eng := engine.New(nil, logger, nil)
		eng.EnsureBuild()
		require.Eventually(t, func() bool {
			return eng.CurrentState() == engine.StateFailed
		}, 2*time.Second, 5*time.Millisecond)

		health := NewHealthService(logger, nil, eng, newFakeCache(), &fakeSink{})
		status := health.CheckHealth()
		assert.Equal(t, "unhealthy", status.Status)
		assert.Contains(t, status.Critical, "catalog")
		assert.Contains(t, status.Critical, "engine")
	})
}
