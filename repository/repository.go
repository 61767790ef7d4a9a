package repository

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/tiagossm/Compia20251207-sub001/database"
	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/securequery"
	"github.com/tiagossm/Compia20251207-sub001/tenant"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// RepositoryImpl implements Repository for a model carrying an
// organization_id column.
//
//	type Inspection struct {
//	    repository.TenantModel
//	    Title string
//	}
//
//	repo, err := repository.NewRepository[Inspection](db, repository.WithSortable("title", "create_time"))
//	page, err := repo.FindPage(ctx, tc, 1, 20, repository.WithOrderBy("create_time DESC"))
type RepositoryImpl[T any] struct {
	db       *gorm.DB
	sortable map[string]bool

	schemaOnce sync.Once
	schema     *schema.Schema
	orgField   *schema.Field
	schemaErr  error
}

type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	sortable []string
}

// WithSortable restricts ORDER BY to the given columns. Without it every
// column of the model is sortable.
func WithSortable(columns ...string) RepositoryOption {
	return func(o *repositoryOptions) {
		o.sortable = append(o.sortable, columns...)
	}
}

// NewRepository fails when T has no organization_id column.
func NewRepository[T any](db *gorm.DB, opts ...RepositoryOption) (*RepositoryImpl[T], error) {
	var o repositoryOptions
	for _, opt := range opts {
		opt(&o)
	}
	r := &RepositoryImpl[T]{db: db}
	s, err := r.getSchema()
	if err != nil {
		return nil, err
	}
	r.sortable = make(map[string]bool)
	if len(o.sortable) == 0 {
		for _, name := range s.DBNames {
			r.sortable[name] = true
		}
	}
	for _, name := range o.sortable {
		if _, ok := s.FieldsByDBName[name]; !ok {
			return nil, fmt.Errorf("repository %s: unknown sortable column %q", s.Table, name)
		}
		r.sortable[name] = true
	}
	return r, nil
}

func (r *RepositoryImpl[T]) newModelPtr() *T {
	var model T
	return &model
}

func (r *RepositoryImpl[T]) withContext(ctx context.Context) *gorm.DB {
	return getDBFromContext(ctx, r.db)
}

func (r *RepositoryImpl[T]) getSchema() (*schema.Schema, error) {
	r.schemaOnce.Do(func() {
		stmt := &gorm.Statement{DB: r.db}
		if r.schemaErr = stmt.Parse(r.newModelPtr()); r.schemaErr != nil {
			return
		}
		r.schema = stmt.Schema
		r.orgField = stmt.Schema.LookUpField(securequery.OrganizationColumn)
		if r.orgField == nil {
			r.schemaErr = fmt.Errorf("repository %s: model has no %s column", stmt.Schema.Table, securequery.OrganizationColumn)
		}
	})
	return r.schema, r.schemaErr
}

// organizationOf reads the organization id of model; nil when unset.
func (r *RepositoryImpl[T]) organizationOf(ctx context.Context, model *T) *int64 {
	v, zero := r.orgField.ValueOf(ctx, reflect.ValueOf(model).Elem())
	if zero {
		return nil
	}
	switch id := v.(type) {
	case int64:
		return &id
	case *int64:
		if id == nil {
			return nil
		}
		out := *id
		return &out
	}
	return nil
}

// rejectOrganization builds the error for an organization outside tc.
// It is an AuthorizationDenied that also matches ErrTenantInjection. The
// audit reason stays in the cause; clients only see the generic message.
func rejectOrganization(v securequery.Validation, orgID int64) error {
	return errors.Wrap(errors.ErrCodeAuthorizationDenied, "organization is outside your scope",
		errors.New(errors.ErrCodeTenantInjection, v.Reason)).
		WithDetail("organization_id", orgID)
}

func (r *RepositoryImpl[T]) Create(ctx context.Context, tc tenant.Context, model *T) error {
	if model == nil {
		return errors.ErrInvalidArgument
	}

	orgID := r.organizationOf(ctx, model)
	if orgID == nil {
		if tc.IsUnassigned() {
			return errors.ErrOrganizationUnassigned
		}
		primary, ok := tc.PrimaryOrganizationID()
		if !ok || !tc.Allows(primary) {
			return errors.New(errors.ErrCodeInvalidArgument, "organization_id is required")
		}
		if err := r.orgField.Set(ctx, reflect.ValueOf(model).Elem(), primary); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to set organization", err)
		}
		orgID = &primary
	}
	if v := securequery.ValidateOrganization(tc, orgID); !v.Valid {
		return rejectOrganization(v, *orgID)
	}

	if err := r.withContext(ctx).Create(model).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return errors.Wrap(errors.ErrCodeAlreadyExists, "record already exists", err)
		}
		return errors.Wrap(errors.ErrCodeInternal, "failed to create record", err)
	}
	return nil
}

func (r *RepositoryImpl[T]) UpdateByID(ctx context.Context, tc tenant.Context, id int64, updates map[string]any, allowedFields ...string) error {
	if len(updates) == 0 {
		return errors.ErrInvalidArgument
	}
	filtered := r.filterUpdates(updates, allowedFields)
	if len(filtered) == 0 {
		return errors.ErrInvalidArgument
	}

	if raw, ok := filtered[securequery.OrganizationColumn]; ok {
		target, ok := toInt64(raw)
		if !ok {
			return errors.New(errors.ErrCodeInvalidArgument, "organization_id must be an integer")
		}
		if v := securequery.ValidateOrganization(tc, &target); !v.Valid {
			return rejectOrganization(v, target)
		}
		filtered[securequery.OrganizationColumn] = target
	}

	result := r.withContext(ctx).Model(r.newModelPtr()).
		Scopes(securequery.Scope(tc, "")).
		Where("id = ?", id).
		Updates(filtered)
	if result.Error != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to update record", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "record not found")
	}
	return nil
}

// filterUpdates drops unknown, primary-key and read-only columns, and
// everything outside allowedFields when it is given.
func (r *RepositoryImpl[T]) filterUpdates(updates map[string]any, allowedFields []string) map[string]any {
	allowed := make(map[string]struct{}, len(allowedFields))
	for _, f := range allowedFields {
		allowed[f] = struct{}{}
	}

	filtered := make(map[string]any)
	for k, v := range updates {
		if len(allowed) > 0 {
			if _, ok := allowed[k]; !ok {
				continue
			}
		}
		field, ok := r.schema.FieldsByDBName[k]
		if !ok {
			field, ok = r.schema.FieldsByName[k]
		}
		if ok && !field.PrimaryKey && field.Updatable {
			filtered[field.DBName] = v
		}
	}
	return filtered
}

func (r *RepositoryImpl[T]) Delete(ctx context.Context, tc tenant.Context, id int64) error {
	result := r.withContext(ctx).Scopes(securequery.Scope(tc, "")).Delete(r.newModelPtr(), "id = ?", id)
	if result.Error != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to delete record", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "record not found")
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case *int64:
		if n != nil {
			return *n, true
		}
	}
	return 0, false
}
