package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goclaw/recall/pkg/storage"
)

// Cache stores embeddings keyed by model and text.
type Cache interface {
	// Get returns the cached vector; ok is false on a miss.
	Get(ctx context.Context, key string) (vec []float32, ok bool, err error)
	Set(ctx context.Context, key string, vec []float32) error
}

// CacheKey derives the cache key of text under model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// RedisCacheConfig configures the Redis embedding cache.
type RedisCacheConfig struct {
	// KeyPrefix is prepended to every cache key.
	KeyPrefix string
	// TTL bounds how long an entry lives. Zero keeps entries forever.
	TTL time.Duration
}

// DefaultRedisCacheConfig returns the default cache settings.
func DefaultRedisCacheConfig() RedisCacheConfig {
	return RedisCacheConfig{
		KeyPrefix: "recall:emb:",
		TTL:       7 * 24 * time.Hour,
	}
}

// RedisCache is a Cache shared across processes through Redis.
type RedisCache struct {
	client redis.Cmdable
	cfg    RedisCacheConfig
}

// NewRedisCache creates a cache over client.
func NewRedisCache(client redis.Cmdable, cfg RedisCacheConfig) *RedisCache {
	return &RedisCache{client: client, cfg: cfg}
}

// NewRedisClient creates a Redis client from the given options.
func NewRedisClient(opts *redis.Options) *redis.Client {
	return redis.NewClient(opts)
}

// PingRedis checks if the Redis connection is healthy.
func PingRedis(ctx context.Context, client redis.Cmdable) error {
	return client.Ping(ctx).Err()
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, c.cfg.KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("embedding cache: get: %w", err)
	}
	vec, err := storage.DecodeVector(raw)
	if err != nil {
		return nil, false, fmt.Errorf("embedding cache: %w", err)
	}
	if len(vec) == 0 {
		return nil, false, nil
	}
	return vec, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, vec []float32) error {
	if err := c.client.Set(ctx, c.cfg.KeyPrefix+key, storage.EncodeVector(vec), c.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("embedding cache: set: %w", err)
	}
	return nil
}
