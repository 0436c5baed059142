package oracle

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"leasehold/internal/leasing/ports"
	dErrors "leasehold/pkg/domain-errors"
	"leasehold/pkg/platform/circuit"
)

type remoteQuoteRequest struct {
	Parent          string `json:"parent"`
	Label           string `json:"label"`
	DurationSeconds int64  `json:"duration_seconds"`
}

type remoteQuoteResponse struct {
	Allowed bool            `json:"allowed"`
	Price   decimal.Decimal `json:"price"`
	Reason  string          `json:"reason"`
}

// Remote asks an HTTP pricing service for quotes. Calls are never retried;
// a run of failures opens the breaker and later calls fail fast.
type Remote struct {
	client  *resty.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type RemoteOption func(*Remote)

func WithRemoteLogger(logger *slog.Logger) RemoteOption {
	return func(r *Remote) { r.logger = logger }
}

func WithBreaker(b *circuit.Breaker) RemoteOption {
	return func(r *Remote) { r.breaker = b }
}

func WithTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) { r.client.SetTimeout(d) }
}

func NewRemote(baseURL string, opts ...RemoteOption) *Remote {
	r := &Remote{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(5*time.Second).
			SetRetryCount(0).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		breaker: circuit.New("remote-oracle"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Remote) Quote(ctx context.Context, req ports.QuoteRequest) (ports.Quote, error) {
	if !r.breaker.Allow() {
		return ports.Quote{}, dErrors.New(dErrors.CodeUnavailable, "remote oracle circuit open")
	}

	var out remoteQuoteResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(remoteQuoteRequest{
			Parent:          req.Parent.String(),
			Label:           req.Label,
			DurationSeconds: int64(req.Duration / time.Second),
		}).
		SetResult(&out).
		Post("/quote")
	if err != nil {
		r.recordFailure()
		return ports.Quote{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "remote oracle unreachable")
	}
	if resp.IsError() {
		r.recordFailure()
		return ports.Quote{}, dErrors.Newf(dErrors.CodeUnavailable, "remote oracle returned %d", resp.StatusCode())
	}
	if change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "remote oracle circuit closed", "breaker", r.breaker.Name())
	}
	if out.Price.IsNegative() {
		return ports.Quote{}, dErrors.New(dErrors.CodeUnavailable, "remote oracle quoted a negative price")
	}
	return ports.Quote{Allowed: out.Allowed, Price: out.Price, Reason: out.Reason}, nil
}

func (r *Remote) recordFailure() {
	if change := r.breaker.RecordFailure(); change.Opened {
		r.logger.Warn("remote oracle circuit opened", "breaker", r.breaker.Name())
	}
}
