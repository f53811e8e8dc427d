package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/clipscout/internal/domain/model"
)

const (
	// videoCacheKeyPrefix is the prefix for fetch result keys in Redis.
	videoCacheKeyPrefix = "videos:"
)

// RedisStore implements Store using Redis as the backing store.
// Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

// Available reports true; an unreachable Redis is replaced by Unavailable at startup.
func (s *RedisStore) Available() bool {
	return true
}

// Get retrieves an entry from Redis.
// Returns nil, nil on cache miss.
func (s *RedisStore) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	data, err := s.client.Get(ctx, s.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		return nil, fmt.Errorf("deserialize entry: %w", err)
	}

	return entry, nil
}

// Set stores an entry in Redis with the specified TTL.
func (s *RedisStore) Set(ctx context.Context, key string, entry *model.CacheEntry, ttl time.Duration) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return fmt.Errorf("serialize entry: %w", err)
	}

	if err := s.client.Set(ctx, s.buildKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Ping verifies the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// buildKey constructs the Redis key for a cache key.
func (s *RedisStore) buildKey(key string) string {
	return videoCacheKeyPrefix + key
}
