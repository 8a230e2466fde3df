package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/echoseed/echoseed/internal/config"
)

// Sink publishes behavioral events off the request path. Delivery is
// at-most-once and fire-and-forget: Publish never blocks for long, never
// panics and never returns an error, only whether the event went out.
type Sink interface {
	Publish(eventType string, fields map[string]interface{}) bool
	Enabled() bool
	Close() error
}

type kafkaSink struct {
	writer       *kafka.Writer
	logger       *logrus.Logger
	writeTimeout time.Duration
}

// NewSink wires the Kafka sink, or a no-op sink when no brokers are
// configured. Telemetry being down must never make recommendations
// unavailable, so this is the only place degradation is decided or logged.
func NewSink(cfg *config.KafkaConfig, logger *logrus.Logger) Sink {
	if len(cfg.Brokers) == 0 {
		logger.Info("Event sink disabled: no Kafka brokers configured")
		return NewNoop()
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{}, // key by event type
		// Fire-and-forget: no acks, no retries.
		RequiredAcks: kafka.RequireNone,
		MaxAttempts:  1,
		BatchTimeout: 10 * time.Millisecond,
	}

	logger.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Info("Event sink connected")

	return &kafkaSink{
		writer:       writer,
		logger:       logger,
		writeTimeout: cfg.WriteTimeout,
	}
}

func (s *kafkaSink) Publish(eventType string, fields map[string]interface{}) bool {
	payload, err := json.Marshal(buildPayload(eventType, fields))
	if err != nil {
		s.logger.WithError(err).Debug("Event payload not serializable")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	message := kafka.Message{
		Key:   []byte(eventType),
		Value: payload,
	}

	if err := s.writer.WriteMessages(ctx, message); err != nil {
		s.logger.WithError(err).WithField("type", eventType).Debug("Event publish failed")
		return false
	}
	return true
}

func (s *kafkaSink) Enabled() bool { return true }

func (s *kafkaSink) Close() error { return s.writer.Close() }

// buildPayload flattens the event into a single JSON object. The timestamp
// is server-assigned here, overriding anything the caller supplied, and
// every event carries a unique id for downstream dedup.
func buildPayload(eventType string, fields map[string]interface{}) map[string]interface{} {
	payload := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		payload[k] = v
	}
	payload["type"] = eventType
	payload["ts"] = time.Now().Unix()
	payload["event_id"] = uuid.NewString()
	return payload
}
