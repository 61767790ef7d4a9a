package repository

import (
	"context"

	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/tenant"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// clampPage maps out-of-range input onto the first page and the size
// bounds instead of rejecting it.
func clampPage(page, size int) (int, int) {
	if size < 1 {
		size = DefaultPageSize
	}
	return max(page, 1), min(size, MaxPageSize)
}

// FindPage counts and reads in one transaction so Total agrees with List.
// An empty scope yields an empty first page, not an error.
func (r *RepositoryImpl[T]) FindPage(ctx context.Context, tc tenant.Context, page, pageSize int, opts ...Option) (*PageResult[T], error) {
	page, pageSize = clampPage(page, pageSize)
	opt := ApplyOptions(opts)

	out := &PageResult[T]{List: []T{}, Page: page, PageSize: pageSize}
	err := r.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		query, err := r.buildQuery(withTx(ctx, tx), tc, opt)
		if err != nil {
			return err
		}
		if err := query.Session(&gorm.Session{}).Count(&out.Total).Error; err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "count scoped records", err)
		}
		if out.Total == 0 {
			return nil
		}
		offset := (page - 1) * pageSize
		if err := query.Offset(offset).Limit(pageSize).Find(&out.List).Error; err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "read scoped page", err)
		}
		return nil
	})
	if err != nil {
		if _, ok := errors.AsBizError(err); ok {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, "page scoped records", err)
	}
	out.Pages = (out.Total + int64(pageSize) - 1) / int64(pageSize)
	return out, nil
}
