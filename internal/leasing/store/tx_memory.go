package store

import (
	"context"
	"log/slog"
	"time"

	dErrors "leasehold/pkg/domain-errors"
	audit "leasehold/pkg/platform/audit"
)

const defaultTxTimeout = 5 * time.Second

// MemoryTx runs a function against a staging overlay of a MemoryStore and
// applies the overlay only if the function succeeds.
type MemoryTx struct {
	store   *MemoryStore
	timeout time.Duration
	logger  *slog.Logger
}

type MemoryTxOption func(*MemoryTx)

func WithMemoryTxTimeout(d time.Duration) MemoryTxOption {
	return func(t *MemoryTx) { t.timeout = d }
}

func WithMemoryTxLogger(logger *slog.Logger) MemoryTxOption {
	return func(t *MemoryTx) { t.logger = logger }
}

func NewMemoryTx(store *MemoryStore, opts ...MemoryTxOption) *MemoryTx {
	t := &MemoryTx{store: store, timeout: defaultTxTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	// Nested calls join the outer transaction.
	if stagingFrom(ctx) != nil {
		return fn(ctx)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	st := newStaging()
	if err := fn(context.WithValue(ctx, stagingKey{}, st)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	t.store.apply(st)

	commitCtx := context.WithoutCancel(ctx)
	for _, hook := range st.afterCommit {
		if err := hook(commitCtx); err != nil {
			t.logger.ErrorContext(ctx, "post-commit hook failed", "error", err)
		}
	}
	return nil
}

// AuditPublisher is the sink audit events end up in.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TxAuditPublisher defers events emitted inside a MemoryTx until it commits.
// Outside a memory transaction it forwards immediately, which is what the
// Postgres outbox wants since the outbox row joins the SQL transaction.
type TxAuditPublisher struct {
	next AuditPublisher
}

func NewTxAuditPublisher(next AuditPublisher) *TxAuditPublisher {
	return &TxAuditPublisher{next: next}
}

func (p *TxAuditPublisher) Emit(ctx context.Context, event audit.Event) error {
	if st := stagingFrom(ctx); st != nil {
		st.onCommit(func(ctx context.Context) error {
			return p.next.Emit(ctx, event)
		})
		return nil
	}
	return p.next.Emit(ctx, event)
}
