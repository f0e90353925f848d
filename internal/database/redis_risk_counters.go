// Package database provides the shared-state collaborators: Redis-backed
// risk counters and Postgres persistence for trade, signal and audit
// records. When Redis is unavailable the counter store degrades to an
// in-process cache so a single session keeps trading; cross-process
// limit sharing resumes once Redis returns.
package database

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"options-scalping-bot/internal/risk"
)

// counterTTL expires day-scoped risk keys well after rollover.
const counterTTL = 48 * time.Hour

// RedisCounterStore implements risk.CounterStore on Redis using INCRBY /
// INCRBYFLOAT, which gives the atomic increment semantics concurrent
// sessions for the same user require.
type RedisCounterStore struct {
	client    *redis.Client
	fallback  *risk.MemoryCounterStore
	available atomic.Bool
	logger    zerolog.Logger
}

var _ risk.CounterStore = (*RedisCounterStore)(nil)

// NewRedisCounterStore wraps a Redis client. A nil client yields a
// memory-only store.
func NewRedisCounterStore(client *redis.Client, logger zerolog.Logger) *RedisCounterStore {
	s := &RedisCounterStore{
		client:   client,
		fallback: risk.NewMemoryCounterStore(),
		logger:   logger,
	}
	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, risk counters degraded to in-memory")
		} else {
			s.available.Store(true)
		}
	}
	return s
}

func (s *RedisCounterStore) useRedis() bool {
	return s.client != nil && s.available.Load()
}

func (s *RedisCounterStore) degrade(err error) {
	s.available.Store(false)
	s.logger.Warn().Err(err).Msg("redis error, risk counters degraded to in-memory")
}

func (s *RedisCounterStore) IncrInt(ctx context.Context, key string, by int64) (int64, error) {
	if s.useRedis() {
		v, err := s.client.IncrBy(ctx, key, by).Result()
		if err == nil {
			s.client.Expire(ctx, key, counterTTL)
			return v, nil
		}
		s.degrade(err)
	}
	return s.fallback.IncrInt(ctx, key, by)
}

func (s *RedisCounterStore) IncrFloat(ctx context.Context, key string, by float64) (float64, error) {
	if s.useRedis() {
		v, err := s.client.IncrByFloat(ctx, key, by).Result()
		if err == nil {
			s.client.Expire(ctx, key, counterTTL)
			return v, nil
		}
		s.degrade(err)
	}
	return s.fallback.IncrFloat(ctx, key, by)
}

func (s *RedisCounterStore) GetInt(ctx context.Context, key string) (int64, error) {
	if s.useRedis() {
		v, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			return 0, nil
		}
		if err == nil {
			return strconv.ParseInt(v, 10, 64)
		}
		s.degrade(err)
	}
	return s.fallback.GetInt(ctx, key)
}

func (s *RedisCounterStore) GetFloat(ctx context.Context, key string) (float64, error) {
	if s.useRedis() {
		v, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			return 0, nil
		}
		if err == nil {
			return strconv.ParseFloat(v, 64)
		}
		s.degrade(err)
	}
	return s.fallback.GetFloat(ctx, key)
}

func (s *RedisCounterStore) SetFlag(ctx context.Context, key string) error {
	if s.useRedis() {
		err := s.client.Set(ctx, key, "1", counterTTL).Err()
		if err == nil {
			return nil
		}
		s.degrade(err)
	}
	return s.fallback.SetFlag(ctx, key)
}

func (s *RedisCounterStore) GetFlag(ctx context.Context, key string) (bool, error) {
	if s.useRedis() {
		v, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			return false, nil
		}
		if err == nil {
			return v == "1", nil
		}
		s.degrade(err)
	}
	return s.fallback.GetFlag(ctx, key)
}
