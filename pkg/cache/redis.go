package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisKeyPrefix namespaces vector entries in a shared Redis instance.
const redisKeyPrefix = "fv:"

// RedisCache is a VectorCache backed by Redis with native TTL expiry.
// Capacity bounding is delegated to the Redis instance's own maxmemory
// eviction policy. All Redis failures degrade to cache misses; the store
// remains the source of truth.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ VectorCache = (*RedisCache)(nil)

// NewRedisCache creates a Redis-backed vector cache.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("vector_cache"),
	}
}

func (c *RedisCache) Get(ctx context.Context, entityID string, featureNames []string, version string) (map[string]any, bool) {
	key := redisKeyPrefix + Key(entityID, featureNames, version)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Redis get failed, treating as miss", zap.Error(err))
		}
		return nil, false
	}

	var vector map[string]any
	if err := json.Unmarshal(payload, &vector); err != nil {
		c.logger.Warn("Corrupt cache entry, treating as miss", zap.Error(err))
		return nil, false
	}
	return vector, true
}

func (c *RedisCache) Set(ctx context.Context, entityID string, vector map[string]any, featureNames []string, version string) {
	key := redisKeyPrefix + Key(entityID, featureNames, version)

	payload, err := json.Marshal(vector)
	if err != nil {
		c.logger.Warn("Failed to encode vector for cache", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Redis set failed", zap.Error(err))
	}
}
