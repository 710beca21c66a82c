package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis key for the size index hash (entry key -> payload bytes). The index
// makes Count and TotalBytes cheap without scanning entry payloads.
const redisSizeIndexKey = keyPrefix + ":index"

// RedisStore is a Store backed by Redis, for multi-instance deployments
// sharing one reuse cache. Entries are stored as JSON without TTL; the core
// implements no eviction policy and retention is an external concern.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Get returns the entry for key, or ErrCacheMiss.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	return &entry, nil
}

// Set upserts the entry under key and updates the size index atomically.
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		storeErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.HSet(ctx, redisSizeIndexKey, key, entry.PayloadBytes())
	if _, err := pipe.Exec(ctx); err != nil {
		storeErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Has reports existence without payload transfer.
func (s *RedisStore) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		storeErrors.WithLabelValues("has").Inc()
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of indexed entries.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	n, err := s.redis.HLen(ctx, redisSizeIndexKey).Result()
	if err != nil {
		storeErrors.WithLabelValues("count").Inc()
		return 0, fmt.Errorf("redis hlen: %w", err)
	}
	return n, nil
}

// TotalBytes sums the size index.
func (s *RedisStore) TotalBytes(ctx context.Context) (int64, error) {
	sizes, err := s.redis.HVals(ctx, redisSizeIndexKey).Result()
	if err != nil {
		storeErrors.WithLabelValues("total_bytes").Inc()
		return 0, fmt.Errorf("redis hvals: %w", err)
	}

	var total int64
	for _, v := range sizes {
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			total += n
		}
	}
	return total, nil
}

// Backend names the backend.
func (s *RedisStore) Backend() string {
	return "redis"
}
