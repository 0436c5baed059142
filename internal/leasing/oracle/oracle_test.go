package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasehold/internal/leasing/ports"
	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
	"leasehold/pkg/platform/circuit"
)

var parent = domain.Namehash("example.eth")

func quote(t *testing.T, o ports.Oracle, label string, d time.Duration) ports.Quote {
	t.Helper()
	q, err := o.Quote(context.Background(), ports.QuoteRequest{Parent: parent, Label: label, Duration: d})
	require.NoError(t, err)
	return q
}

func TestFixed(t *testing.T) {
	o := NewFixed(decimal.NewFromInt(1000))
	for _, d := range []time.Duration{time.Hour, Year, 10 * Year} {
		q := quote(t, o, "anything", d)
		assert.True(t, q.Allowed)
		assert.True(t, q.Price.Equal(decimal.NewFromInt(1000)))
	}
}

func TestTiered(t *testing.T) {
	o := &Tiered{
		ByLength:  map[int]decimal.Decimal{3: decimal.NewFromInt(640)},
		Default:   decimal.NewFromInt(5),
		MinLength: 3,
	}

	tests := []struct {
		name    string
		label   string
		d       time.Duration
		allowed bool
		price   string
	}{
		{"short label rejected", "ab", Year, false, "0"},
		{"three chars one year", "abc", Year, true, "640"},
		{"three chars half year", "abc", Year / 2, true, "320"},
		{"long label default", "example", Year, true, "5"},
		{"multibyte counted as runes", "äöü", Year, true, "640"},
		{"baseline for empty label", "", Year, true, "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := quote(t, o, tt.label, tt.d)
			assert.Equal(t, tt.allowed, q.Allowed)
			if tt.allowed {
				assert.True(t, q.Price.Equal(decimal.RequireFromString(tt.price)), "got %s", q.Price)
			} else {
				assert.NotEmpty(t, q.Reason)
			}
		})
	}
}

func TestReserved(t *testing.T) {
	o := NewReserved(NewFixed(decimal.NewFromInt(7)), "Admin", "www")

	q := quote(t, o, "admin", Year)
	assert.False(t, q.Allowed)
	assert.Contains(t, q.Reason, "reserved")

	q = quote(t, o, "alice", Year)
	assert.True(t, q.Allowed)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(7)))
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry(decimal.NewFromInt(1000))
	assert.Equal(t, []string{RefBasic, RefReserved, RefTiered}, r.Refs())

	basic, err := r.Resolve(RefBasic)
	require.NoError(t, err)
	assert.True(t, quote(t, basic, "", Year).Price.Equal(decimal.NewFromInt(1000)))

	reserved, err := r.Resolve(RefReserved)
	require.NoError(t, err)
	assert.False(t, quote(t, reserved, "www", Year).Allowed)

	_, err = r.Resolve("nope")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = r.Resolve("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestRemote(t *testing.T) {
	t.Run("decodes quote", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/quote", r.URL.Path)
			var body remoteQuoteRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "sub", body.Label)
			assert.Equal(t, int64(3600), body.DurationSeconds)
			assert.Equal(t, parent.String(), body.Parent)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"allowed":true,"price":"12.5"}`))
		}))
		defer srv.Close()

		q := quote(t, NewRemote(srv.URL), "sub", time.Hour)
		assert.True(t, q.Allowed)
		assert.True(t, q.Price.Equal(decimal.RequireFromString("12.5")))
	})

	t.Run("passes rejection reason", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"allowed":false,"price":"0","reason":"sold out"}`))
		}))
		defer srv.Close()

		q := quote(t, NewRemote(srv.URL), "sub", time.Hour)
		assert.False(t, q.Allowed)
		assert.Equal(t, "sold out", q.Reason)
	})

	t.Run("opens breaker after failures and does not retry", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		o := NewRemote(srv.URL, WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))))
		req := ports.QuoteRequest{Parent: parent, Label: "sub", Duration: time.Hour}

		for range 2 {
			_, err := o.Quote(context.Background(), req)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		}
		assert.Equal(t, int32(2), calls.Load())

		_, err := o.Quote(context.Background(), req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		assert.Equal(t, int32(2), calls.Load(), "open breaker fails fast")
	})
}
