// Package outbox relays audit events from the Postgres outbox table to Kafka.
package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditpg "leasehold/pkg/platform/audit/store/postgres"
	txcontext "leasehold/pkg/platform/tx"
)

// Publisher delivers a batch of outbox entries. Delivery must be complete
// when Publish returns nil.
type Publisher interface {
	Publish(ctx context.Context, entries []auditpg.Entry) error
}

// Relay polls the outbox and publishes unpublished rows. Rows are marked in
// the same transaction that locked them, so a crash between publish and
// commit re-delivers rather than loses events.
type Relay struct {
	db        *sql.DB
	store     *auditpg.Store
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batch     int
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func NewRelay(db *sql.DB, store *auditpg.Store, publisher Publisher, opts ...Option) *Relay {
	r := &Relay{
		db:        db,
		store:     store,
		publisher: publisher,
		logger:    slog.Default(),
		interval:  time.Second,
		batch:     100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
				break
			}
			if n < r.batch {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce publishes one batch and returns how many entries it relayed.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	txCtx := txcontext.WithTx(ctx, tx)

	entries, err := r.store.FetchUnpublished(txCtx, r.batch)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := r.publisher.Publish(ctx, entries); err != nil {
		return 0, err
	}

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := r.store.MarkPublished(txCtx, ids, time.Now()); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	r.logger.DebugContext(ctx, "outbox batch relayed", "count", len(entries))
	return len(entries), nil
}
