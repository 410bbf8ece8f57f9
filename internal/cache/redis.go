package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces rendered pages in Redis
const DefaultKeyPrefix = "scorebook:page:"

// RedisCache keeps rendered pages so reruns skip the browser
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisCacheFromClient(client), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: DefaultKeyPrefix,
	}
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// GetPage returns a cached page. A miss is not an error.
func (rc *RedisCache) GetPage(ctx context.Context, url string) (string, bool, error) {
	html, err := rc.client.Get(ctx, rc.key(url)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return html, true, nil
}

// SetPage stores a page with TTL; zero keeps it until evicted
func (rc *RedisCache) SetPage(ctx context.Context, url, html string, ttl time.Duration) error {
	return rc.client.Set(ctx, rc.key(url), html, ttl).Err()
}

// DeletePage drops a cached page
func (rc *RedisCache) DeletePage(ctx context.Context, url string) error {
	return rc.client.Del(ctx, rc.key(url)).Err()
}

func (rc *RedisCache) key(url string) string {
	sum := sha1.Sum([]byte(url))
	return rc.prefix + hex.EncodeToString(sum[:])
}
