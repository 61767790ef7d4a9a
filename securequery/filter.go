package securequery

import (
	"github.com/tiagossm/Compia20251207-sub001/tenant"

	"gorm.io/gorm"
)

// OrganizationColumn is the tenant key of every organization-scoped table.
const OrganizationColumn = "organization_id"

// DenyAll is the predicate of an empty scope.
const DenyAll = "1 = 0"

// Predicate is a parameterized SQL condition. An empty SQL means the
// query is not restricted.
type Predicate struct {
	SQL  string
	Args []any
}

func (p Predicate) IsUnrestricted() bool { return p.SQL == "" }

// Filter builds the organization predicate for tc. alias, when set, must
// be a bare identifier and qualifies the column.
//
//	unrestricted        -> no predicate
//	no organizations    -> 1 = 0
//	one organization    -> organization_id = ?
//	many organizations  -> organization_id IN ?
func Filter(tc tenant.Context, alias string) (Predicate, error) {
	column := OrganizationColumn
	if alias != "" {
		if err := ValidateIdentifier("alias", alias); err != nil {
			return Predicate{}, err
		}
		column = alias + "." + OrganizationColumn
	}

	if tc.IsSystemAdmin() {
		return Predicate{}, nil
	}

	ids := tc.OrganizationIDs()
	switch len(ids) {
	case 0:
		return Predicate{SQL: DenyAll}, nil
	case 1:
		return Predicate{SQL: column + " = ?", Args: []any{ids[0]}}, nil
	default:
		return Predicate{SQL: column + " IN ?", Args: []any{ids}}, nil
	}
}

// Scope applies Filter as a gorm scope. An invalid alias is recorded on
// the statement so the query fails instead of running unfiltered.
func Scope(tc tenant.Context, alias string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		p, err := Filter(tc, alias)
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		if p.IsUnrestricted() {
			return db
		}
		return db.Where(p.SQL, p.Args...)
	}
}
