// Package cache stores resolved property records keyed by normalized
// address, with TTL expiry and explicit key versioning.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"

	"propertygate/internal/models"
)

// Cache defines the interface for property record caching
type Cache interface {
	Get(ctx context.Context, key string) (*models.PropertyRecord, bool)
	Set(ctx context.Context, key string, record *models.PropertyRecord, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Stats() map[string]interface{}
}

// LocalCache wraps patrickmn/go-cache for in-memory caching
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates a new local cache instance
func NewLocalCache(defaultTTL, cleanupInterval time.Duration) *LocalCache {
	return &LocalCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a record from the local cache
func (l *LocalCache) Get(ctx context.Context, key string) (*models.PropertyRecord, bool) {
	value, found := l.cache.Get(key)
	if !found {
		return nil, false
	}

	record, ok := value.(*models.PropertyRecord)
	if !ok {
		return nil, false
	}
	return record, true
}

// Set stores a record in the local cache
func (l *LocalCache) Set(ctx context.Context, key string, record *models.PropertyRecord, ttl time.Duration) error {
	l.cache.Set(key, record, ttl)
	return nil
}

// Delete removes a record from the local cache
func (l *LocalCache) Delete(ctx context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}

// Stats returns cache statistics
func (l *LocalCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"backend": "memory",
		"size":    l.cache.ItemCount(),
	}
}

// RedisCache wraps go-redis for shared caching across instances
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a record from Redis
func (r *RedisCache) Get(ctx context.Context, key string) (*models.PropertyRecord, bool) {
	val, err := r.client.Get(ctx, r.keyPrefix+key).Result()
	if err != nil {
		return nil, false
	}

	var record models.PropertyRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		// Stale-shaped entry; treat as a miss
		return nil, false
	}
	return &record, true
}

// Set stores a record in Redis
func (r *RedisCache) Set(ctx context.Context, key string, record *models.PropertyRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, r.keyPrefix+key, data, ttl).Err()
}

// Delete removes a record from Redis
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+key).Err()
}

// Stats returns cache statistics
func (r *RedisCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"backend":    "redis",
		"key_prefix": r.keyPrefix,
	}
}

var (
	_ Cache = (*LocalCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
