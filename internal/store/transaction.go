package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey int

const transactionKey contextKey = iota

var errTxFinished = errors.New("transaction already finished")

// Tx is a gorm transaction carried in a context. Store calls made with that
// context run inside it.
type Tx struct {
	tx      *gorm.DB
	started time.Time
}

// WithinTransaction runs fn in a transaction and commits when fn succeeds.
// A transaction already present in ctx is reused and left for its owner to finish.
func WithinTransaction(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error) error {
	if _, found := ctx.Value(transactionKey).(*Tx); found {
		return fn(ctx)
	}
	txCtx, err := newTransactionContext(ctx, db)
	if err != nil {
		return err
	}
	if err := fn(txCtx); err != nil {
		_, _ = Rollback(txCtx)
		return err
	}
	_, err = Commit(txCtx)
	return err
}

func Commit(ctx context.Context) (context.Context, error) {
	tx, ok := ctx.Value(transactionKey).(*Tx)
	if !ok {
		return ctx, nil
	}
	return context.WithValue(ctx, transactionKey, nil), tx.finish(true)
}

// Rollback is a no-op on a transaction that was already committed.
func Rollback(ctx context.Context) (context.Context, error) {
	tx, ok := ctx.Value(transactionKey).(*Tx)
	if !ok {
		return ctx, nil
	}
	err := tx.finish(false)
	if errors.Is(err, errTxFinished) {
		err = nil
	}
	return context.WithValue(ctx, transactionKey, nil), err
}

func FromContext(ctx context.Context) *gorm.DB {
	if tx, found := ctx.Value(transactionKey).(*Tx); found && tx.tx != nil {
		return tx.tx
	}
	return nil
}

func newTransactionContext(ctx context.Context, db *gorm.DB) (context.Context, error) {
	if tx, found := ctx.Value(transactionKey).(*Tx); found && tx != nil {
		return ctx, nil
	}

	tx := db.Session(&gorm.Session{Context: ctx}).Begin()
	if tx.Error != nil {
		return ctx, tx.Error
	}
	return context.WithValue(ctx, transactionKey, &Tx{tx: tx, started: time.Now()}), nil
}

func (t *Tx) finish(commit bool) error {
	if t.tx == nil {
		return errTxFinished
	}

	op := "rollback"
	res := t.tx
	if commit {
		op = "commit"
		res = res.Commit()
	} else {
		res = res.Rollback()
	}
	t.tx = nil

	logger := zap.S().Named("store")
	if res.Error != nil {
		logger.Errorw("transaction failed to finish", "op", op, "error", res.Error)
		return res.Error
	}
	logger.Debugw("transaction finished", "op", op, "duration", time.Since(t.started))
	return nil
}
