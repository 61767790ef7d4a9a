package tenant

import (
	"slices"

	"github.com/tiagossm/Compia20251207-sub001/identity"
)

// ScopeKind says how far a caller reaches.
type ScopeKind uint8

const (
	// ScopeOrganizations limits the caller to an explicit set. The zero
	// Scope is this kind with an empty set and denies everything.
	ScopeOrganizations ScopeKind = iota
	// ScopeUnrestricted is reserved for system administrators.
	ScopeUnrestricted
	// ScopeUnassigned is a non-admin caller without any organization.
	ScopeUnassigned
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeUnrestricted:
		return "unrestricted"
	case ScopeUnassigned:
		return "unassigned"
	default:
		return "organizations"
	}
}

// Context is the per-request authorization boundary. It is a value: all
// fields are unexported and accessors return copies, so a Context cannot
// be widened after it is built.
type Context struct {
	userID     string
	role       identity.Role
	primaryOrg *int64
	kind       ScopeKind
	orgs       []int64 // sorted, unique; nil unless kind is ScopeOrganizations
}

// Unrestricted builds the context of a system administrator.
func Unrestricted(userID string, primaryOrg *int64) Context {
	return Context{
		userID:     userID,
		role:       identity.RoleSystemAdmin,
		primaryOrg: copyID(primaryOrg),
		kind:       ScopeUnrestricted,
	}
}

// Restricted builds a context limited to orgs. An empty set yields
// ScopeUnassigned.
func Restricted(userID string, role identity.Role, primaryOrg *int64, orgs []int64) Context {
	c := Context{
		userID:     userID,
		role:       role,
		primaryOrg: copyID(primaryOrg),
		kind:       ScopeUnassigned,
	}
	if set := normalizeIDs(orgs); len(set) > 0 {
		c.kind = ScopeOrganizations
		c.orgs = set
	}
	return c
}

func (c Context) UserID() string { return c.userID }

func (c Context) Role() identity.Role { return c.role }

func (c Context) Kind() ScopeKind { return c.kind }

func (c Context) IsSystemAdmin() bool { return c.kind == ScopeUnrestricted }

func (c Context) IsUnassigned() bool { return c.kind == ScopeUnassigned }

// PrimaryOrganizationID is informational; it never widens the scope.
func (c Context) PrimaryOrganizationID() (int64, bool) {
	if c.primaryOrg == nil {
		return 0, false
	}
	return *c.primaryOrg, true
}

// OrganizationIDs returns a copy of the allowed set. It is empty for
// unrestricted and unassigned contexts; check Kind first.
func (c Context) OrganizationIDs() []int64 {
	return slices.Clone(c.orgs)
}

// Allows reports whether orgID is inside the boundary.
func (c Context) Allows(orgID int64) bool {
	switch c.kind {
	case ScopeUnrestricted:
		return true
	case ScopeOrganizations:
		_, found := slices.BinarySearch(c.orgs, orgID)
		return found
	default:
		return false
	}
}

// FilterAllowed keeps the ids of orgIDs that are inside the boundary.
func (c Context) FilterAllowed(orgIDs []int64) []int64 {
	out := make([]int64, 0, len(orgIDs))
	for _, id := range orgIDs {
		if c.Allows(id) {
			out = append(out, id)
		}
	}
	return out
}

// Equal compares by value.
func (c Context) Equal(o Context) bool {
	if c.userID != o.userID || c.role != o.role || c.kind != o.kind {
		return false
	}
	if (c.primaryOrg == nil) != (o.primaryOrg == nil) {
		return false
	}
	if c.primaryOrg != nil && *c.primaryOrg != *o.primaryOrg {
		return false
	}
	return slices.Equal(c.orgs, o.orgs)
}

func normalizeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
