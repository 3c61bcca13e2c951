package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/i474232898/air-quality-aggregation/internal/airquality"
)

const redisKeyPrefix = "aq:latest:"

// RedisStore is a Cache backed by Redis. Records are stored as JSON with the
// store's TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *RedisStore) Set(ctx context.Context, key string, rec airquality.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (airquality.Record, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return airquality.Record{}, ErrNotFound
		}
		return airquality.Record{}, fmt.Errorf("redis get %s: %w", key, err)
	}

	var rec airquality.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return airquality.Record{}, fmt.Errorf("failed to decode cached record: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
