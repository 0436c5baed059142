package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"leasehold/pkg/domain"
)

func TestAccessorsDefaults(t *testing.T) {
	ctx := context.Background()

	assert.True(t, Caller(ctx).IsZero())
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.Empty(t, UserAgent(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestAccessorsRoundTrip(t *testing.T) {
	caller := domain.MustParseAddress("0x00000000000000000000000000000000000000aa")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ctx := WithCaller(context.Background(), caller)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTime(ctx, fixed)
	ctx = WithClientMetadata(ctx, "10.0.0.1", "Firefox/120.0")
	ctx = WithTokenID(ctx, "jti-1")

	assert.Equal(t, caller, Caller(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, fixed, Now(ctx))
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "Firefox/120.0", UserAgent(ctx))
	assert.Equal(t, "jti-1", TokenID(ctx))
}
