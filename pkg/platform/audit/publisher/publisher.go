// Package publisher fans audit events into an audit.Store.
//
// Synchronous mode writes on the caller's goroutine and context, so an event
// emitted inside a database transaction lands in the same transaction. Async
// mode buffers events for stores that need no transactional coupling.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	audit "leasehold/pkg/platform/audit"
	"leasehold/pkg/requestcontext"
)

// ErrBufferFull is returned by Emit in async mode when the buffer is saturated.
var ErrBufferFull = errors.New("audit buffer full")

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit stamps the event (timestamp, category, request id) and stores it.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit event dropped", "action", event.Action, "domain", event.Domain)
		}
		return ErrBufferFull
	}
}

// List returns the events recorded for a domain.
func (p *Publisher) List(ctx context.Context, domain string) ([]audit.Event, error) {
	return p.store.ListByDomain(ctx, domain)
}

// Close stops accepting async events and waits for the buffer to drain.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event", "error", err, "action", event.Action)
		}
	}
}
