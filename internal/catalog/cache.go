package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "catalog:content:"

// KV is the subset of *redis.Client used by CachedSource.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedSource serves content records from Redis and falls through to next on a miss.
// Redis failures are logged and bypassed; only lookups that succeed upstream are cached.
type CachedSource struct {
	next   Source
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedSource wraps next with a Redis cache. ttl <= 0 disables caching.
func NewCachedSource(next Source, kv KV, ttl time.Duration, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{next: next, kv: kv, ttl: ttl, logger: logger}
}

// CacheKey returns the Redis key for a content ID.
func CacheKey(id string) string {
	return cacheKeyPrefix + id
}

// Get returns the cached record or fetches and caches it.
func (s *CachedSource) Get(ctx context.Context, id string) (*Content, error) {
	if s.kv == nil || s.ttl <= 0 {
		return s.next.Get(ctx, id)
	}
	key := CacheKey(id)

	cached, err := s.kv.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var c Content
		if jsonErr := json.Unmarshal(cached, &c); jsonErr == nil {
			return &c, nil
		}
		s.logger.Warn("catalog cache entry corrupt", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("catalog cache read failed", zap.Error(err), zap.String("key", key))
	}

	c, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(c); err == nil {
		if err := s.kv.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err), zap.String("key", key))
		}
	}
	return c, nil
}
