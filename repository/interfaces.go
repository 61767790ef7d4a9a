package repository

import (
	"context"

	"github.com/tiagossm/Compia20251207-sub001/tenant"
)

/* ========================================================================
 * Organization-scoped repository
 * ========================================================================
 * Every read and write takes the caller's tenant.Context explicitly. The
 * organization predicate is added by the repository itself; options can
 * narrow a query but never widen it.
 * ======================================================================== */

type condition struct {
	query string
	args  []any
}

// QueryOption holds the per-call modifiers.
type QueryOption struct {
	// Preloads are associations to load, e.g. "Items".
	Preloads []string
	// OrderBy is checked against the repository's sortable columns.
	OrderBy string
	// Conditions are ANDed with the organization predicate.
	Conditions []condition
}

type Option func(*QueryOption)

func WithPreloads(preloads ...string) Option {
	return func(o *QueryOption) {
		o.Preloads = append(o.Preloads, preloads...)
	}
}

func WithOrderBy(orderBy string) Option {
	return func(o *QueryOption) {
		o.OrderBy = orderBy
	}
}

// WithCondition adds a parameterized predicate. query must be a constant
// written by the caller; request input belongs in args.
func WithCondition(query string, args ...any) Option {
	return func(o *QueryOption) {
		o.Conditions = append(o.Conditions, condition{query: query, args: args})
	}
}

func ApplyOptions(opts []Option) *QueryOption {
	o := &QueryOption{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PageResult is one page of a scoped listing.
type PageResult[T any] struct {
	List     []T   `json:"list"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int64 `json:"pages"`
}

// Repository is the data access contract for organization-scoped models.
type Repository[T any] interface {
	// Create inserts model. A missing organization id is filled with the
	// caller's primary organization; one outside the scope is rejected.
	Create(ctx context.Context, tc tenant.Context, model *T) error

	// FindByID returns NotFound both for missing rows and rows outside
	// the caller's scope.
	FindByID(ctx context.Context, tc tenant.Context, id int64, opts ...Option) (*T, error)

	Find(ctx context.Context, tc tenant.Context, opts ...Option) ([]T, error)

	FindPage(ctx context.Context, tc tenant.Context, page, pageSize int, opts ...Option) (*PageResult[T], error)

	Count(ctx context.Context, tc tenant.Context, opts ...Option) (int64, error)

	// UpdateByID applies the allowed fields of updates. Moving a row to
	// another organization is validated like Create.
	UpdateByID(ctx context.Context, tc tenant.Context, id int64, updates map[string]any, allowedFields ...string) error

	Delete(ctx context.Context, tc tenant.Context, id int64) error

	// Transaction runs fn with a context carrying the transaction; calls
	// made with txCtx join it.
	Transaction(ctx context.Context, fn func(txCtx context.Context) error) error
}
