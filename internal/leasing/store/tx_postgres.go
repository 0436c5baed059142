package store

import (
	"context"
	"database/sql"
	"time"

	"leasehold/internal/platform/postgres"
	dErrors "leasehold/pkg/domain-errors"
	txcontext "leasehold/pkg/platform/tx"
)

// PostgresTx runs a function inside a database transaction carried in the context.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresTx(db *sql.DB, timeout time.Duration) *PostgresTx {
	return &PostgresTx{db: db, timeout: timeout}
}

func (t *PostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if postgres.IsSerializationFailure(err) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update, retry the operation")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit transaction")
	}
	return nil
}
