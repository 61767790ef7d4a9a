package repository

import (
	"context"

	"github.com/tiagossm/Compia20251207-sub001/errors"

	"gorm.io/gorm"
)

type ctxTxKey struct{}

func withTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, ctxTxKey{}, tx)
}

// getDBFromContext returns the transaction carried by ctx, or db. The
// result is always bound to ctx.
func getDBFromContext(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(ctxTxKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// Transaction commits when fn returns nil and rolls back otherwise.
// Business errors returned by fn pass through unchanged.
func (r *RepositoryImpl[T]) Transaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	err := r.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(withTx(ctx, tx))
	})
	if err == nil {
		return nil
	}
	if _, ok := errors.AsBizError(err); ok {
		return err
	}
	return errors.Wrap(errors.ErrCodeInternal, "transaction failed", err)
}
