package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/echoseed/echoseed/internal/cache"
	"github.com/echoseed/echoseed/internal/catalog"
	"github.com/echoseed/echoseed/internal/engine"
	"github.com/echoseed/echoseed/internal/events"
)

type HealthService struct {
	logger  *logrus.Logger
	catalog *catalog.Store
	engine  *engine.Engine
	cache   cache.Store
	sink    events.Sink
}

type HealthStatus struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]string      `json:"services"`
	Critical    []string               `json:"critical_failures,omitempty"`
	NonCritical []string               `json:"non_critical_failures,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

func NewHealthService(
	logger *logrus.Logger,
	store *catalog.Store,
	eng *engine.Engine,
	cacheStore cache.Store,
	sink events.Sink,
) *HealthService {
	return &HealthService{
		logger:  logger,
		catalog: store,
		engine:  eng,
		cache:   cacheStore,
		sink:    sink,
	}
}

// CheckHealth distinguishes critical failures (catalog, a failed engine
// build) from degraded-but-operational ones (cache or sink disabled): the
// recommendation path survives the latter by design.
func (s *HealthService) CheckHealth() *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Services:  make(map[string]string),
		Details:   make(map[string]interface{}),
	}

	healthy := true

	if s.catalog == nil {
		status.Services["catalog"] = "unhealthy"
		status.Critical = append(status.Critical, "catalog")
		healthy = false
	} else {
		status.Services["catalog"] = "healthy"
		status.Details["catalog_tracks"] = s.catalog.Size()
	}

	engineState := s.engine.CurrentState()
	status.Details["engine_state"] = engineState.String()
	switch engineState {
	case engine.StateFailed:
		status.Services["engine"] = "unhealthy"
		status.Critical = append(status.Critical, "engine")
		healthy = false
	case engine.StateReady:
		status.Services["engine"] = "healthy"
	default:
		status.Services["engine"] = "building"
	}

	if !s.cache.Enabled() {
		status.Services["cache"] = "disabled"
		status.NonCritical = append(status.NonCritical, "cache")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := s.cache.Ping(ctx)
		cancel()
		if err != nil {
			status.Services["cache"] = "unhealthy"
			status.NonCritical = append(status.NonCritical, "cache")
			s.logger.WithError(err).Warn("Cache health check failed")
		} else {
			status.Services["cache"] = "healthy"
		}
	}

	if !s.sink.Enabled() {
		status.Services["event_sink"] = "disabled"
		status.NonCritical = append(status.NonCritical, "event_sink")
	} else {
		status.Services["event_sink"] = "healthy"
	}

	switch {
	case !healthy:
		status.Status = "unhealthy"
	case len(status.NonCritical) > 0:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}

	return status
}
