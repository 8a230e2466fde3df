package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/echoseed/echoseed/internal/config"
)

// redisStore memoizes recommendation results and mirrors recent
// interactions in Redis. Every call is wrapped in a short timeout so a slow
// or down Redis can never hang the recommendation path; failures degrade to
// a miss and are logged at debug level only.
type redisStore struct {
	client    *redis.Client
	logger    *logrus.Logger
	namespace string
	opTimeout time.Duration
	recentTTL time.Duration
	recentMax int64
}

// New wires the Redis store, or the null store when no address is
// configured or the instance is unreachable. Degradation is decided and
// logged exactly once, here.
func New(cfg *config.RedisConfig, logger *logrus.Logger) Store {
	if cfg.Addr == "" {
		logger.Info("Recommendation cache disabled: no Redis address configured")
		return NewNoop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Recommendation cache disabled: Redis unreachable")
		return NewNoop()
	}

	logger.WithField("addr", cfg.Addr).Info("Recommendation cache connected")

	return &redisStore{
		client:    client,
		logger:    logger,
		namespace: cfg.Namespace,
		opTimeout: cfg.OpTimeout,
		recentTTL: cfg.RecentTTL,
		recentMax: cfg.RecentMax,
	}
}

func (s *redisStore) recKey(listenerID, contextID string) string {
	return fmt.Sprintf("%s:rec:%s:%s", s.namespace, listenerID, contextID)
}

func (s *redisStore) recentKey(subjectID string) string {
	return fmt.Sprintf("%s:recent:%s", s.namespace, subjectID)
}

func (s *redisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *redisStore) GetRecommendations(ctx context.Context, listenerID, contextID string) ([]string, bool) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, s.recKey(listenerID, contextID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.WithError(err).Debug("Recommendation cache read failed")
		}
		return nil, false
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		s.logger.WithError(err).Debug("Recommendation cache entry malformed")
		return nil, false
	}
	return ids, true
}

func (s *redisStore) PutRecommendations(ctx context.Context, listenerID, contextID string, trackIDs []string, ttl time.Duration) bool {
	data, err := json.Marshal(trackIDs)
	if err != nil {
		return false
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, s.recKey(listenerID, contextID), data, ttl).Err(); err != nil {
		s.logger.WithError(err).Debug("Recommendation cache write failed")
		return false
	}
	return true
}

func (s *redisStore) PushRecent(ctx context.Context, subjectID string, payload []byte) bool {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := s.recentKey(subjectID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, s.recentMax-1)
	pipe.Expire(ctx, key, s.recentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).Debug("Recent interaction write failed")
		return false
	}
	return true
}

func (s *redisStore) Recent(ctx context.Context, subjectID string, limit int64) [][]byte {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if limit <= 0 || limit > s.recentMax {
		limit = s.recentMax
	}

	values, err := s.client.LRange(ctx, s.recentKey(subjectID), 0, limit-1).Result()
	if err != nil {
		s.logger.WithError(err).Debug("Recent interaction read failed")
		return nil
	}

	payloads := make([][]byte, 0, len(values))
	for _, v := range values {
		payloads = append(payloads, []byte(v))
	}
	return payloads
}

func (s *redisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Enabled() bool { return true }
