package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Request outcomes recorded on the recommendation path.
const (
	OutcomeCacheHit    = "cache_hit"
	OutcomeComputed    = "computed"
	OutcomeEmpty       = "empty"
	OutcomeNotReady    = "not_ready"
	OutcomeUnavailable = "unavailable"
)

type Metrics struct {
	RecommendationRequests *prometheus.CounterVec
	BehavioralEvents       *prometheus.CounterVec
	EngineReady            prometheus.Gauge
	EngineBuildPercent     prometheus.Gauge
}

func NewMetrics(logger *logrus.Logger) *Metrics {
	m := &Metrics{
		RecommendationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Recommendation requests by outcome",
		}, []string{"outcome"}),
		BehavioralEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "behavioral_events_total",
			Help: "Behavioral events by type and delivery result",
		}, []string{"type", "delivered"}),
		EngineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "similarity_engine_ready",
			Help: "Whether the similarity engine is ready (1) or not (0)",
		}),
		EngineBuildPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "similarity_engine_build_percent",
			Help: "Feature index build progress, 0-100",
		}),
	}

	collectors := []prometheus.Collector{
		m.RecommendationRequests,
		m.BehavioralEvents,
		m.EngineReady,
		m.EngineBuildPercent,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			// Re-registration happens in tests; only real failures matter.
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				logger.WithError(err).Warn("Failed to register metric")
			}
		}
	}

	return m
}
