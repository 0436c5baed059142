// Package oracle holds the subdomain pricing authorities and the registry that
// maps a domain's stored oracle reference to one of them.
package oracle

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"leasehold/internal/leasing/ports"
	strutil "leasehold/pkg/platform/strings"
)

// Year is the pricing unit and the baseline duration used for rent prices.
const Year = 365 * 24 * time.Hour

// Fixed allows every label at one flat price regardless of duration.
type Fixed struct {
	Price decimal.Decimal
}

func NewFixed(price decimal.Decimal) *Fixed {
	return &Fixed{Price: price}
}

func (f *Fixed) Quote(_ context.Context, _ ports.QuoteRequest) (ports.Quote, error) {
	return ports.Quote{Allowed: true, Price: f.Price}, nil
}

// Tiered prices per year by label length and prorates by duration.
// Labels shorter than MinLength are rejected. The empty label quotes Default.
type Tiered struct {
	// ByLength maps a label length in runes to its yearly price.
	ByLength  map[int]decimal.Decimal
	Default   decimal.Decimal
	MinLength int
}

func (t *Tiered) Quote(_ context.Context, req ports.QuoteRequest) (ports.Quote, error) {
	yearly := t.Default
	if req.Label != "" {
		n := utf8.RuneCountInString(req.Label)
		if n < t.MinLength {
			return ports.Quote{Reason: "label shorter than " + strconv.Itoa(t.MinLength) + " characters"}, nil
		}
		if p, ok := t.ByLength[n]; ok {
			yearly = p
		}
	}
	return ports.Quote{Allowed: true, Price: prorate(yearly, req.Duration)}, nil
}

// Reserved rejects a fixed set of labels and defers everything else to Next.
type Reserved struct {
	Next   ports.Oracle
	labels map[string]struct{}
}

func NewReserved(next ports.Oracle, labels ...string) *Reserved {
	labels = strutil.DedupeAndTrimLower(labels)
	r := &Reserved{Next: next, labels: make(map[string]struct{}, len(labels))}
	for _, l := range labels {
		r.labels[l] = struct{}{}
	}
	return r
}

func (r *Reserved) Quote(ctx context.Context, req ports.QuoteRequest) (ports.Quote, error) {
	if _, ok := r.labels[strings.ToLower(req.Label)]; ok {
		return ports.Quote{Reason: "label " + req.Label + " is reserved"}, nil
	}
	return r.Next.Quote(ctx, req)
}

func prorate(yearly decimal.Decimal, d time.Duration) decimal.Decimal {
	if d <= 0 {
		return decimal.Zero
	}
	secs := decimal.NewFromInt(int64(d / time.Second))
	return yearly.Mul(secs).Div(decimal.NewFromInt(int64(Year / time.Second))).Round(6)
}
