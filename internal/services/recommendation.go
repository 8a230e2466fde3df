package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/echoseed/echoseed/internal/cache"
	"github.com/echoseed/echoseed/internal/catalog"
	"github.com/echoseed/echoseed/internal/config"
	"github.com/echoseed/echoseed/internal/engine"
	"github.com/echoseed/echoseed/internal/events"
	"github.com/echoseed/echoseed/pkg/models"
)

// RecommendationService orchestrates the recommendation path: consult the
// cache, compute via the similarity engine on a miss, write the result back
// and report it to the event sink. Cache and sink are best-effort
// collaborators; only the engine can fail a request.
type RecommendationService struct {
	catalog *catalog.Store
	engine  *engine.Engine
	cache   cache.Store
	sink    events.Sink
	cfg     *config.RecommendationConfig
	logger  *logrus.Logger
	metrics *Metrics
}

func NewRecommendationService(
	store *catalog.Store,
	eng *engine.Engine,
	cacheStore cache.Store,
	sink events.Sink,
	cfg *config.RecommendationConfig,
	logger *logrus.Logger,
	metrics *Metrics,
) *RecommendationService {
	return &RecommendationService{
		catalog: store,
		engine:  eng,
		cache:   cacheStore,
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Recommend returns ranked tracks for the seed set. When listenerID and
// contextID are both set the result is memoized under that pair; a cache
// hit skips the engine entirely but its ids are still re-resolved against
// the current catalog snapshot, silently dropping any that no longer exist.
func (s *RecommendationService) Recommend(
	ctx context.Context,
	listenerID, contextID string,
	seeds []models.SeedInfo,
	limit int,
) (*models.RecommendationResult, error) {
	// Without a catalog snapshot nothing can be resolved, cached or
	// computed; even a cache hit needs the snapshot to rehydrate ids.
	if s.catalog == nil {
		s.metrics.RecommendationRequests.WithLabelValues(OutcomeUnavailable).Inc()
		return nil, engine.ErrCatalogUnavailable
	}

	limit = s.clampLimit(limit)
	cacheable := listenerID != "" && contextID != ""

	if cacheable {
		if ids, ok := s.cache.GetRecommendations(ctx, listenerID, contextID); ok {
			tracks := s.resolveIDs(ids, limit)
			s.metrics.RecommendationRequests.WithLabelValues(OutcomeCacheHit).Inc()
			s.logger.WithFields(logrus.Fields{
				"listener_id": listenerID,
				"context_id":  contextID,
				"tracks":      len(tracks),
			}).Debug("Recommendation cache hit")

			s.publishServed(listenerID, contextID, tracks)
			return &models.RecommendationResult{
				Tracks:      tracks,
				CacheHit:    true,
				GeneratedAt: time.Now(),
			}, nil
		}
	}

	tracks, err := s.engine.Recommend(seeds, limit)
	if err != nil {
		switch err {
		case engine.ErrCatalogUnavailable:
			s.metrics.RecommendationRequests.WithLabelValues(OutcomeUnavailable).Inc()
		default:
			s.metrics.RecommendationRequests.WithLabelValues(OutcomeNotReady).Inc()
		}
		return nil, err
	}

	if len(tracks) == 0 {
		s.metrics.RecommendationRequests.WithLabelValues(OutcomeEmpty).Inc()
		return &models.RecommendationResult{
			Tracks:      []models.Track{},
			Fallback:    true,
			GeneratedAt: time.Now(),
		}, nil
	}

	if cacheable {
		s.cache.PutRecommendations(ctx, listenerID, contextID, trackIDs(tracks), s.cfg.CacheTTL)
	}
	s.publishServed(listenerID, contextID, tracks)
	s.metrics.RecommendationRequests.WithLabelValues(OutcomeComputed).Inc()

	return &models.RecommendationResult{
		Tracks:      tracks,
		GeneratedAt: time.Now(),
	}, nil
}

// PopularFallback is the cold-start list served when no seed resolves.
func (s *RecommendationService) PopularFallback(limit int) []models.Track {
	if s.catalog == nil {
		return []models.Track{}
	}
	return s.catalog.PopularTracks(s.clampLimit(limit))
}

func (s *RecommendationService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}

// resolveIDs maps cached ids back to tracks in cached order. Ids cached
// before a catalog change may no longer resolve; those are dropped, not
// errors.
func (s *RecommendationService) resolveIDs(ids []string, limit int) []models.Track {
	tracks := make([]models.Track, 0, len(ids))
	for _, id := range ids {
		if track, ok := s.catalog.ByID(id); ok {
			tracks = append(tracks, track)
			if len(tracks) == limit {
				break
			}
		}
	}
	return tracks
}

func (s *RecommendationService) publishServed(listenerID, contextID string, tracks []models.Track) {
	delivered := s.sink.Publish(models.EventRecommendationServed, map[string]interface{}{
		"listener_id": listenerID,
		"context_id":  contextID,
		"track_ids":   trackIDs(tracks),
	})
	s.metrics.BehavioralEvents.WithLabelValues(models.EventRecommendationServed, boolLabel(delivered)).Inc()
}

func trackIDs(tracks []models.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
