package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/echoseed/echoseed/internal/catalog"
	"github.com/echoseed/echoseed/pkg/models"
)

var (
	// ErrNotReady is returned while the feature index build is in flight or
	// has failed; callers show a waiting state, not an error page.
	ErrNotReady = errors.New("similarity engine is not ready")

	// ErrCatalogUnavailable means the catalog snapshot never loaded. This is
	// permanent for the process lifetime.
	ErrCatalogUnavailable = errors.New("catalog snapshot is unavailable")
)

type State int

const (
	StateUninitialized State = iota
	StateBuilding
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProgressFunc receives build progress updates. Percent is monotonically
// non-decreasing for the lifetime of the build.
type ProgressFunc func(models.BuildProgress)

// Engine ranks catalog tracks by audio-feature similarity to a seed set.
// The normalized feature index is built once, off the request path; until
// the build completes every Recommend call fails with ErrNotReady.
type Engine struct {
	logger     *logrus.Logger
	onProgress ProgressFunc

	mu       sync.Mutex
	state    State
	progress models.BuildProgress
	failure  error

	store *catalog.Store

	// Min-max bounds per dimension, fixed at build time. This puts tempo
	// (BPM) and the [0,1]-bounded features on one comparable scale.
	mins       [models.NumFeatures]float64
	ranges     [models.NumFeatures]float64
	normalized [][models.NumFeatures]float64
}

// New creates an engine over a catalog snapshot. A nil store is allowed and
// makes the build fail with ErrCatalogUnavailable, leaving readiness
// permanently false instead of crash-looping the process.
func New(store *catalog.Store, logger *logrus.Logger, onProgress ProgressFunc) *Engine {
	return &Engine{
		logger:     logger,
		onProgress: onProgress,
		store:      store,
		progress:   models.BuildProgress{Percent: 0, Message: "waiting for first status poll"},
	}
}

// EnsureBuild triggers the index build exactly once per process. Concurrent
// calls are idempotent; at most one build goroutine ever runs.
func (e *Engine) EnsureBuild() {
	e.mu.Lock()
	if e.state != StateUninitialized {
		e.mu.Unlock()
		return
	}
	e.state = StateBuilding
	e.mu.Unlock()

	go e.build()
}

// Status reports readiness and current build progress.
func (e *Engine) Status() (bool, models.BuildProgress) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateReady, e.progress
}

// CurrentState returns the lifecycle state.
func (e *Engine) CurrentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Failure returns the build error after a failed build, nil otherwise.
func (e *Engine) Failure() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failure
}

func (e *Engine) build() {
	defer func() {
		if r := recover(); r != nil {
			e.fail(fmt.Errorf("index build panicked: %v", r))
		}
	}()

	if e.store == nil {
		e.fail(ErrCatalogUnavailable)
		return
	}

	e.setProgress(5, "scanning catalog features")

	n := e.store.Size()
	var values [models.NumFeatures][]float64
	for i := 0; i < n; i++ {
		f := e.store.At(i).Features
		for d := 0; d < models.NumFeatures; d++ {
			if f.Present[d] {
				values[d] = append(values[d], f.Values[d])
			}
		}
		if n >= 20 && i%(n/20) == 0 {
			e.setProgress(5+55*i/n, fmt.Sprintf("scanning catalog features (%d/%d)", i, n))
		}
	}

	e.setProgress(70, "computing normalization bounds")
	for d := 0; d < models.NumFeatures; d++ {
		if len(values[d]) == 0 {
			continue
		}
		min := floats.Min(values[d])
		max := floats.Max(values[d])
		e.mins[d] = min
		e.ranges[d] = max - min
	}

	e.setProgress(85, "normalizing feature matrix")
	e.normalized = make([][models.NumFeatures]float64, n)
	for i := 0; i < n; i++ {
		f := e.store.At(i).Features
		for d := 0; d < models.NumFeatures; d++ {
			if f.Present[d] && e.ranges[d] > 0 {
				e.normalized[i][d] = (f.Values[d] - e.mins[d]) / e.ranges[d]
			}
		}
	}

	e.mu.Lock()
	e.state = StateReady
	e.mu.Unlock()
	e.setProgress(100, "ready")

	e.logger.WithField("tracks", n).Info("Similarity index built")
}

func (e *Engine) fail(err error) {
	e.mu.Lock()
	e.state = StateFailed
	e.failure = err
	e.progress.Message = fmt.Sprintf("build failed: %v", err)
	progress := e.progress
	cb := e.onProgress
	e.mu.Unlock()

	e.logger.WithError(err).Error("Similarity index build failed")
	if cb != nil {
		cb(progress)
	}
}

func (e *Engine) setProgress(percent int, message string) {
	e.mu.Lock()
	if percent < e.progress.Percent {
		percent = e.progress.Percent
	}
	e.progress = models.BuildProgress{Percent: percent, Message: message}
	progress := e.progress
	cb := e.onProgress
	e.mu.Unlock()

	if cb != nil {
		cb(progress)
	}
}

// Recommend resolves the seed set, builds a taste vector and returns the
// `limit` catalog tracks nearest to it, excluding the seeds themselves.
// Output is fully deterministic for a given seed set and snapshot: distance
// ascending, ties broken by popularity descending, then catalog order.
func (e *Engine) Recommend(seeds []models.SeedInfo, limit int) ([]models.Track, error) {
	e.mu.Lock()
	state, failure := e.state, e.failure
	e.mu.Unlock()

	if state != StateReady {
		if errors.Is(failure, ErrCatalogUnavailable) {
			return nil, ErrCatalogUnavailable
		}
		return nil, ErrNotReady
	}

	seedIdx := e.resolveSeeds(seeds)
	if len(seedIdx) == 0 || limit <= 0 {
		// Total seed-resolution miss is not an error; callers fall back to
		// a popularity-ranked list.
		return []models.Track{}, nil
	}

	// Sorted seed order keeps float accumulation identical across calls.
	ordered := make([]int, 0, len(seedIdx))
	for i := range seedIdx {
		ordered = append(ordered, i)
	}
	sort.Ints(ordered)

	taste, tastePresent := e.tasteVector(ordered)

	type candidate struct {
		index int
		dist  float64
	}

	candidates := make([]candidate, 0, e.store.Size()-len(seedIdx))
	for i := 0; i < e.store.Size(); i++ {
		if _, isSeed := seedIdx[i]; isSeed {
			continue
		}
		candidates = append(candidates, candidate{
			index: i,
			dist:  e.distance(taste, tastePresent, i),
		})
	}

	sort.Slice(candidates, func(x, y int) bool {
		a, b := candidates[x], candidates[y]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		pa := e.store.At(a.index).Popularity
		pb := e.store.At(b.index).Popularity
		if pa != pb {
			return pa > pb
		}
		return a.index < b.index
	})

	if limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]models.Track, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, e.store.At(c.index))
	}
	return result, nil
}

// resolveSeeds maps seed infos to catalog positions: id lookup first, then
// the (name, artist) fallback. Seeds resolving to nothing, and malformed
// seeds with neither id nor name, are dropped silently.
func (e *Engine) resolveSeeds(seeds []models.SeedInfo) map[int]struct{} {
	resolved := make(map[int]struct{})
	for _, seed := range seeds {
		if seed.ID != "" {
			if i, ok := e.store.IndexByID(seed.ID); ok {
				resolved[i] = struct{}{}
				continue
			}
		}
		if seed.Name != "" {
			if t, ok := e.store.ByNameArtist(seed.Name, seed.Artist); ok {
				if i, ok := e.store.IndexByID(t.ID); ok {
					resolved[i] = struct{}{}
				}
			}
		}
	}
	return resolved
}

// tasteVector is the per-dimension mean over normalized seed features. A
// seed missing a dimension contributes nothing to it; a dimension no seed
// carries stays absent from the taste vector entirely.
func (e *Engine) tasteVector(seedIdx []int) ([models.NumFeatures]float64, [models.NumFeatures]bool) {
	var taste [models.NumFeatures]float64
	var present [models.NumFeatures]bool

	for d := 0; d < models.NumFeatures; d++ {
		var contributions []float64
		for _, i := range seedIdx {
			if e.store.At(i).Features.Present[d] {
				contributions = append(contributions, e.normalized[i][d])
			}
		}
		if len(contributions) > 0 {
			taste[d] = stat.Mean(contributions, nil)
			present[d] = true
		}
	}
	return taste, present
}

// distance is the Euclidean distance over dimensions shared by the taste
// vector and the candidate, averaged per dimension so tracks with sparse
// features stay comparable to fully-featured ones.
func (e *Engine) distance(taste [models.NumFeatures]float64, tastePresent [models.NumFeatures]bool, i int) float64 {
	var sum float64
	var count int
	f := e.store.At(i).Features
	for d := 0; d < models.NumFeatures; d++ {
		if !tastePresent[d] || !f.Present[d] {
			continue
		}
		diff := taste[d] - e.normalized[i][d]
		sum += diff * diff
		count++
	}
	if count == 0 {
		return math.Inf(1)
	}
	return math.Sqrt(sum / float64(count))
}
