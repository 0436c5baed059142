//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer is a throwaway Redis for the distributed lock tests.
type RedisContainer struct {
	Container testcontainers.Container
	Addr      string
	Client    *redis.Client
}

// NewRedisContainer starts redis:7-alpine. The Manager shares it across
// suites, so no t.Cleanup is registered here.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "start redis container")

	url, err := container.ConnectionString(ctx)
	if err == nil {
		var opts *redis.Options
		if opts, err = redis.ParseURL(url); err == nil {
			client := redis.NewClient(opts)
			if err = client.Ping(ctx).Err(); err == nil {
				return &RedisContainer{Container: container, Addr: url, Client: client}
			}
			_ = client.Close()
		}
	}
	_ = container.Terminate(ctx)
	require.NoError(t, err, "connect to redis container")
	return nil
}

// FlushAll drops every key, releasing locks left by a previous test.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
