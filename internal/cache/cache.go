// Package cache provides optional Redis-backed caching for chunk
// status lookups. The service is fully functional without it; New
// fails softly when REDIS_URL is absent or Redis is unreachable, and
// callers run uncached.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terrainworks/worldapi/internal/chunks"
)

// StatusTTL bounds how stale a cached chunk status may be. Short on
// purpose: a pending chunk flips to ready within seconds, and the
// coordinator invalidates on commit anyway.
const StatusTTL = 15 * time.Second

// Cache is a thin wrapper over the Redis client.
type Cache struct {
	client *redis.Client
}

// New connects to Redis at the given URL and verifies the connection.
func New(redisURL string) (*Cache, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("cache: no REDIS_URL configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect to Redis: %w", err)
	}

	slog.Info("cache connection established", "host", opt.Addr)
	return &Cache{client: client}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// statusKey builds the cache key for one chunk status.
// Format: chunkstatus:{version}:{layer}:{resolution}:{x}:{z}
func statusKey(version string, chunkX, chunkZ int, layer string, resolution int) string {
	return fmt.Sprintf("chunkstatus:%s:%s:%d:%d:%d", version, layer, resolution, chunkX, chunkZ)
}

// GetStatus returns a cached status. Redis errors degrade to a miss.
func (c *Cache) GetStatus(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int) (chunks.Status, bool) {
	val, err := c.client.Get(ctx, statusKey(version, chunkX, chunkZ, layer, resolution)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		slog.Warn("cache: status read failed, treating as miss", "error", err)
		return "", false
	}
	return chunks.Status(val), true
}

// SetStatus stores a status with the standard TTL. Failures are
// logged and ignored; the cache is advisory.
func (c *Cache) SetStatus(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int, status chunks.Status) {
	if err := c.client.Set(ctx, statusKey(version, chunkX, chunkZ, layer, resolution), string(status), StatusTTL).Err(); err != nil {
		slog.Warn("cache: status write failed", "error", err)
	}
}

// Invalidate drops a cached status after a metadata commit.
func (c *Cache) Invalidate(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int) {
	if err := c.client.Del(ctx, statusKey(version, chunkX, chunkZ, layer, resolution)).Err(); err != nil {
		slog.Warn("cache: invalidation failed", "error", err)
	}
}
