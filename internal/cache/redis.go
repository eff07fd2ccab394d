package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"todo-api/internal/config"
	"todo-api/pkg/logger"
)

const (
	todosCacheKey   = "todos:all"
	todosVersionKey = "todos:version"
)

// Cache holds the serialized todo list in Redis.
//
// Entries are keyed by a version counter that every write bumps, so a list
// stored after a concurrent write lands under a stale key and is never read.
// A nil *Cache is a disabled cache: reads miss and writes are no-ops.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to REDIS_URL and pings it.
func New(ctx context.Context, cfg *config.Config) (*Cache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.PoolSize = cfg.RedisPoolSize
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info(ctx, "Redis client initialized", "pool_size", cfg.RedisPoolSize)
	return NewWithClient(client, time.Duration(cfg.CacheTTL)*time.Second), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func listKey(version int64) string {
	return fmt.Sprintf("%s:v%d", todosCacheKey, version)
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, todosVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// GetTodos returns the cached JSON list and the version it was read at.
// ok is false on a miss or any Redis error; version is -1 when unknown.
func (c *Cache) GetTodos(ctx context.Context) (b []byte, version int64, ok bool) {
	if c == nil {
		return nil, -1, false
	}
	version, err := c.version(ctx)
	if err != nil {
		logger.Debug(ctx, "Redis get todos version failed", "error", err)
		return nil, -1, false
	}
	b, err = c.client.Get(ctx, listKey(version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false
	}
	if err != nil {
		logger.Debug(ctx, "Redis get todos failed", "error", err)
		return nil, version, false
	}
	return b, version, true
}

// SetTodos stores the JSON list under the version it was loaded at.
func (c *Cache) SetTodos(ctx context.Context, version int64, b []byte) {
	if c == nil || version < 0 {
		return
	}
	if err := c.client.Set(ctx, listKey(version), b, c.ttl).Err(); err != nil {
		logger.Debug(ctx, "Redis set todos failed", "error", err)
	}
}

// InvalidateTodos bumps the list version so the next read goes to the store.
func (c *Cache) InvalidateTodos(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Incr(ctx, todosVersionKey).Err(); err != nil {
		logger.Debug(ctx, "Redis invalidate todos failed", "error", err)
	}
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
