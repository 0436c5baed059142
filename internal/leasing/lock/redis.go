package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	dErrors "leasehold/pkg/domain-errors"
)

const keyPrefix = "leasehold:lock:domain:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a token lock shared by every process using the same Redis.
// A holder that dies releases implicitly when the TTL lapses.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	logger *slog.Logger
}

type RedisOption func(*Redis)

func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) { r.retry = d }
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = logger }
}

func NewRedis(client redis.UniversalClient, ttl, wait time.Duration, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: ttl, wait: wait, retry: 25 * time.Millisecond, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire domain lock")
		}
		if ok {
			return r.unlocker(redisKey, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "domain %s is busy, retry", key)
		}
		select {
		case <-ctx.Done():
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "waiting for domain lock")
		case <-time.After(r.retry):
		}
	}
}

func (r *Redis) unlocker(key, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
			r.logger.Warn("release domain lock", "key", key, "error", fmt.Errorf("redis: %w", err))
		}
	}
}
