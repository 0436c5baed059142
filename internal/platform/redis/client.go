// Package redis opens the shared client behind the distributed domain locks.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"leasehold/internal/platform/config"
)

type Client struct {
	*redis.Client
}

// New dials Redis and pings it once. An empty URL returns (nil, nil) so
// callers fall back to in-process locks.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	c := &Client{Client: redis.NewClient(opts)}
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return c, nil
}

// Health pings the server; /healthz reports it.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
