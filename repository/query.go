package repository

import (
	"context"

	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/securequery"
	"github.com/tiagossm/Compia20251207-sub001/tenant"

	"gorm.io/gorm"
)

// buildQuery starts every read: organization predicate first, then the
// caller's options.
func (r *RepositoryImpl[T]) buildQuery(ctx context.Context, tc tenant.Context, opts *QueryOption) (*gorm.DB, error) {
	db := r.withContext(ctx).Model(r.newModelPtr()).Scopes(securequery.Scope(tc, ""))
	if opts == nil {
		return db, nil
	}

	for _, c := range opts.Conditions {
		db = db.Where("("+c.query+")", c.args...)
	}
	if opts.OrderBy != "" {
		if err := securequery.ValidateOrderBy(opts.OrderBy, r.sortable); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidArgument, "invalid order by", err)
		}
		db = db.Order(opts.OrderBy)
	}
	for _, preload := range opts.Preloads {
		db = db.Preload(preload)
	}
	return db, nil
}

func (r *RepositoryImpl[T]) FindByID(ctx context.Context, tc tenant.Context, id int64, opts ...Option) (*T, error) {
	query, err := r.buildQuery(ctx, tc, ApplyOptions(opts))
	if err != nil {
		return nil, err
	}

	model := r.newModelPtr()
	if err := query.Where("id = ?", id).Take(model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrCodeNotFound, "record not found")
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to find record", err)
	}
	return model, nil
}

func (r *RepositoryImpl[T]) Find(ctx context.Context, tc tenant.Context, opts ...Option) ([]T, error) {
	query, err := r.buildQuery(ctx, tc, ApplyOptions(opts))
	if err != nil {
		return nil, err
	}

	var list []T
	if err := query.Find(&list).Error; err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to find records", err)
	}
	return list, nil
}

func (r *RepositoryImpl[T]) Count(ctx context.Context, tc tenant.Context, opts ...Option) (int64, error) {
	query, err := r.buildQuery(ctx, tc, ApplyOptions(opts))
	if err != nil {
		return 0, err
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, "failed to count records", err)
	}
	return total, nil
}
