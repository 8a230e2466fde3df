package engine

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoseed/echoseed/internal/catalog"
	"github.com/echoseed/echoseed/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func track(id, name, artist string, popularity int, dance, energy float64) models.Track {
	var f models.FeatureVector
	f.Set(models.FeatureDanceability, dance)
	f.Set(models.FeatureEnergy, energy)
	return models.Track{
		ID:         id,
		Name:       name,
		Artist:     artist,
		Genre:      "test",
		Year:       2020,
		Popularity: popularity,
		Features:   f,
	}
}

func readyEngine(t *testing.T, tracks []models.Track) *Engine {
	t.Helper()
	store := catalog.NewFromTracks(tracks)
	eng := New(store, testLogger(), nil)
	eng.EnsureBuild()
	require.Eventually(t, func() bool {
		return eng.CurrentState() == StateReady
	}, 2*time.Second, 5*time.Millisecond)
	return eng
}

func TestEngine_Lifecycle(t *testing.T) {
	t.Run("starts uninitialized", func(t *testing.T) {
		eng := New(catalog.NewFromTracks([]models.Track{track("a", "A", "X", 10, 0.5, 0.5)}), testLogger(), nil)
		assert.Equal(t, StateUninitialized, eng.CurrentState())

		ready, progress := eng.Status()
		assert.False(t, ready)
		assert.Equal(t, 0, progress.Percent)
	})

	t.Run("recommend before build is not ready", func(t *testing.T) {
		eng := New(catalog.NewFromTracks([]models.Track{track("a", "A", "X", 10, 0.5, 0.5)}), testLogger(), nil)
		_, err := eng.Recommend([]models.SeedInfo{{ID: "a"}}, 5)
		assert.ErrorIs(t, err, ErrNotReady)
	})

	t.Run("ensure build is idempotent", func(t *testing.T) {
		eng := readyEngine(t, []models.Track{track("a", "A", "X", 10, 0.5, 0.5)})
		eng.EnsureBuild()
		eng.EnsureBuild()
		assert.Equal(t, StateReady, eng.CurrentState())

		ready, progress := eng.Status()
		assert.True(t, ready)
		assert.Equal(t, 100, progress.Percent)
	})

	t.Run("nil store fails permanently", func(t *testing.T) {
		eng := New(nil, testLogger(), nil)
		eng.EnsureBuild()
		require.Eventually(t, func() bool {
			return eng.CurrentState() == StateFailed
		}, 2*time.Second, 5*time.Millisecond)

		assert.ErrorIs(t, eng.Failure(), ErrCatalogUnavailable)

		_, err := eng.Recommend([]models.SeedInfo{{ID: "a"}}, 5)
		assert.ErrorIs(t, err, ErrCatalogUnavailable)
	})

	t.Run("progress is monotonically non-decreasing", func(t *testing.T) {
		var percents []int
		store := catalog.NewFromTracks([]models.Track{
			track("a", "A", "X", 10, 0.5, 0.5),
			track("b", "B", "X", 20, 0.1, 0.9),
		})
		eng := New(store, testLogger(), func(p models.BuildProgress) {
			percents = append(percents, p.Percent)
		})
		eng.EnsureBuild()
		require.Eventually(t, func() bool {
			return eng.CurrentState() == StateReady
		}, 2*time.Second, 5*time.Millisecond)

		require.NotEmpty(t, percents)
		for i := 1; i < len(percents); i++ {
			assert.GreaterOrEqual(t, percents[i], percents[i-1])
		}
		assert.Equal(t, 100, percents[len(percents)-1])
	})
}

func TestEngine_Recommend(t *testing.T) {
	// B is far from A, C is close to A. Seeding with A must rank C first
	// and never return A itself.
	tracks := []models.Track{
		track("a", "Alpha", "Ada", 50, 0.8, 0.2),
		track("b", "Beta", "Bob", 90, 0.1, 0.9),
		track("c", "Gamma", "Cleo", 40, 0.75, 0.25),
	}
	eng := readyEngine(t, tracks)

	t.Run("nearest neighbour excludes the seed", func(t *testing.T) {
		got, err := eng.Recommend([]models.SeedInfo{{ID: "a"}}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "c", got[0].ID)
	})

	t.Run("limit larger than catalog returns everything but the seeds", func(t *testing.T) {
		got, err := eng.Recommend([]models.SeedInfo{{ID: "a"}}, 100)
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "c", got[0].ID)
		assert.Equal(t, "b", got[1].ID)
	})

	t.Run("unresolvable seeds give an empty result, not an error", func(t *testing.T) {
		got, err := eng.Recommend([]models.SeedInfo{{ID: "nope"}, {Name: "Ghost", Artist: "Nobody"}}, 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("no seeds give an empty result", func(t *testing.T) {
		got, err := eng.Recommend(nil, 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("name and artist fallback resolution", func(t *testing.T) {
		got, err := eng.Recommend([]models.SeedInfo{{Name: "alpha", Artist: "ADA"}}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "c", got[0].ID)
	})

	t.Run("id wins over name", func(t *testing.T) {
		// ID resolves to b; the name fields point at a but must be ignored.
		got, err := eng.Recommend([]models.SeedInfo{{ID: "b", Name: "Alpha", Artist: "Ada"}}, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.NotContains(t, []string{got[0].ID, got[1].ID}, "b")
	})

	t.Run("duplicate seeds collapse", func(t *testing.T) {
		once, err := eng.Recommend([]models.SeedInfo{{ID: "a"}}, 5)
		require.NoError(t, err)
		twice, err := eng.Recommend([]models.SeedInfo{{ID: "a"}, {ID: "a"}, {Name: "Alpha", Artist: "Ada"}}, 5)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	})
}

func TestEngine_Determinism(t *testing.T) {
	tracks := []models.Track{
		track("a", "Alpha", "Ada", 50, 0.8, 0.2),
		track("b", "Beta", "Bob", 90, 0.1, 0.9),
		track("c", "Gamma", "Cleo", 40, 0.75, 0.25),
		track("d", "Delta", "Dee", 70, 0.4, 0.6),
		track("e", "Epsilon", "Eve", 60, 0.55, 0.45),
	}
	eng := readyEngine(t, tracks)

	seeds := []models.SeedInfo{{ID: "a"}, {ID: "d"}}
	first, err := eng.Recommend(seeds, 10)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := eng.Recommend(seeds, 10)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	// Seed order must not change the ranking either.
	swapped, err := eng.Recommend([]models.SeedInfo{{ID: "d"}, {ID: "a"}}, 10)
	require.NoError(t, err)
	assert.Equal(t, first, swapped)
}

func TestEngine_TieBreaks(t *testing.T) {
	// b, c and d sit at the same distance from a; higher popularity wins,
	// then catalog order settles the remaining tie.
	eng := readyEngine(t, []models.Track{
		track("a", "Alpha", "Ada", 50, 0.5, 0.5),
		track("b", "Beta", "Bob", 90, 0.6, 0.5),
		track("c", "Gamma", "Cleo", 40, 0.4, 0.5),
		track("d", "Delta", "Dee", 40, 0.6, 0.5),
	})

	got, err := eng.Recommend([]models.SeedInfo{{ID: "a"}}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].ID) // popularity 90 beats the equidistant 40s
	assert.Equal(t, "c", got[1].ID) // catalog order beats d at equal popularity
	assert.Equal(t, "d", got[2].ID)
}

func TestEngine_SparseFeatures(t *testing.T) {
	sparse := models.Track{ID: "s", Name: "Sparse", Artist: "Sol", Popularity: 10}
	sparse.Features.Set(models.FeatureDanceability, 0.8)

	bare := models.Track{ID: "x", Name: "Bare", Artist: "Xul", Popularity: 99}

	eng := readyEngine(t, []models.Track{
		track("a", "Alpha", "Ada", 50, 0.8, 0.2),
		track("b", "Beta", "Bob", 90, 0.1, 0.9),
		sparse,
		bare,
	})

	got, err := eng.Recommend([]models.SeedInfo{{ID: "a"}}, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Sparse track is compared on its one shared dimension and lands close
	// to the seed; the featureless track has no shared dimensions and sinks
	// to the bottom despite its popularity.
	assert.Equal(t, "s", got[0].ID)
	assert.Equal(t, "x", got[2].ID)
}
