// Package requestcontext carries request-scoped values from the HTTP
// middleware to the leasing engine without importing net/http.
//
// Middleware writes the values; services read them. Tests inject them
// directly:
//
//	ctx = requestcontext.WithCaller(ctx, addr)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"leasehold/pkg/domain"
)

type key int

const (
	callerKey key = iota
	tokenIDKey
	clientIPKey
	userAgentKey
	requestIDKey
	requestTimeKey
)

func value[T any](ctx context.Context, k key) T {
	v, _ := ctx.Value(k).(T)
	return v
}

// Caller is the authenticated address, or the zero address for anonymous
// requests.
func Caller(ctx context.Context) domain.Address {
	return value[domain.Address](ctx, callerKey)
}

func WithCaller(ctx context.Context, caller domain.Address) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// TokenID is the jti of the bearer token that authenticated the caller.
func TokenID(ctx context.Context) string {
	return value[string](ctx, tokenIDKey)
}

func WithTokenID(ctx context.Context, jti string) context.Context {
	return context.WithValue(ctx, tokenIDKey, jti)
}

func ClientIP(ctx context.Context) string {
	return value[string](ctx, clientIPKey)
}

// UserAgent is the normalized browser/OS summary set by the metadata middleware.
func UserAgent(ctx context.Context) string {
	return value[string](ctx, userAgentKey)
}

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, clientIP)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func RequestID(ctx context.Context) string {
	return value[string](ctx, requestIDKey)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// Now is the time fixed for this request. Outside a request (relay batches,
// tests without injection) it is the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins Now for everything downstream of ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}
