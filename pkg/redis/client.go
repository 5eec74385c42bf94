package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/voltlab/regimeflow/pkg/config"
)

// Client wraps the Redis connection used for feature and signal caching.
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb     *redis.Client
	enabled bool
}

// New connects to Redis per the config. When Redis is disabled the
// returned client is a no-op, so callers never branch on configuration.
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return NewDisabled(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{rdb: rdb, enabled: true}, nil
}

// NewDisabled returns a client whose cache operations are no-ops.
// Used when the pipeline runs without a cache (backfills, tests).
func NewDisabled() *Client {
	return &Client{}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Enabled reports whether a live connection backs this client.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Redis returns the underlying redis client for advanced usage
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
