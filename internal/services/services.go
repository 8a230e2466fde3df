package services

import (
	"github.com/sirupsen/logrus"

	"github.com/echoseed/echoseed/internal/cache"
	"github.com/echoseed/echoseed/internal/catalog"
	"github.com/echoseed/echoseed/internal/config"
	"github.com/echoseed/echoseed/internal/engine"
	"github.com/echoseed/echoseed/internal/events"
	"github.com/echoseed/echoseed/internal/session"
	"github.com/echoseed/echoseed/internal/validation"
	"github.com/echoseed/echoseed/pkg/models"
)

type Services struct {
	Catalog        *catalog.Store
	Engine         *engine.Engine
	Cache          cache.Store
	EventSink      events.Sink
	Sessions       *session.Tracker
	Validator      *validation.SchemaValidator
	Metrics        *Metrics
	Recommendation *RecommendationService
	Health         *HealthService
}

// New wires every component. A missing catalog is not fatal here: the
// process starts, reports failed readiness forever and serves 503s, which
// beats crash-looping on a bad dataset.
func New(cfg *config.Config, logger *logrus.Logger) *Services {
	metrics := NewMetrics(logger)

	store, err := catalog.Load(cfg.Catalog.Path, logger)
	if err != nil {
		logger.WithError(err).Error("Catalog unavailable; recommendations will never be served")
		store = nil
	}

	eng := engine.New(store, logger, func(p models.BuildProgress) {
		metrics.EngineBuildPercent.Set(float64(p.Percent))
		if p.Percent == 100 {
			metrics.EngineReady.Set(1)
		}
	})

	cacheStore := cache.New(&cfg.Redis, logger)
	sink := events.NewSink(&cfg.Kafka, logger)
	sessions := session.NewTracker(cfg.Session.MaxSeeds, cfg.Session.MaxIdle)
	validator := validation.NewSchemaValidator()

	recommendation := NewRecommendationService(
		store, eng, cacheStore, sink, &cfg.Recommendation, logger, metrics,
	)
	health := NewHealthService(logger, store, eng, cacheStore, sink)

	return &Services{
		Catalog:        store,
		Engine:         eng,
		Cache:          cacheStore,
		EventSink:      sink,
		Sessions:       sessions,
		Validator:      validator,
		Metrics:        metrics,
		Recommendation: recommendation,
		Health:         health,
	}
}

// Close releases transport resources.
func (s *Services) Close() error {
	return s.EventSink.Close()
}
