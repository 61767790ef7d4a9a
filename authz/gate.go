package authz

import (
	"fmt"

	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/identity"
	"github.com/tiagossm/Compia20251207-sub001/metrics"
	"github.com/tiagossm/Compia20251207-sub001/tenant"
)

// Gate is an allow-list of role classes. System administrators always
// pass; RoleUnknown never does.
type Gate struct {
	name    string
	allowed map[identity.Role]struct{}
	labels  []string
}

// NewGate normalizes roles, so "Company-Admin" and "org_admin" name the
// same class. A role string that names no class is rejected; skipping it
// would leave the route open to system administrators only.
func NewGate(name string, roles ...string) (*Gate, error) {
	g := &Gate{name: name, allowed: make(map[identity.Role]struct{})}
	for _, raw := range roles {
		role := identity.NormalizeRole(raw)
		if role == identity.RoleUnknown {
			return nil, fmt.Errorf("authz: gate %q: unknown role %q", name, raw)
		}
		if _, dup := g.allowed[role]; dup {
			continue
		}
		g.allowed[role] = struct{}{}
		g.labels = append(g.labels, role.String())
	}
	return g, nil
}

// MustGate is NewGate for route registration; it panics on an unknown role.
func MustGate(name string, roles ...string) *Gate {
	g, err := NewGate(name, roles...)
	if err != nil {
		panic(err)
	}
	return g
}

// RequiredRoles lists the normalized roles in declaration order.
func (g *Gate) RequiredRoles() []string {
	return append([]string(nil), g.labels...)
}

// Check returns nil when tc may pass. A nil tc is denied. The error names
// the required roles and nothing about the caller's organizations.
func (g *Gate) Check(tc *tenant.Context) error {
	if tc != nil {
		if tc.IsSystemAdmin() {
			metrics.AuthzDecisionsTotal.WithLabelValues(g.name, "allowed").Inc()
			return nil
		}
		if _, ok := g.allowed[tc.Role()]; ok {
			metrics.AuthzDecisionsTotal.WithLabelValues(g.name, "allowed").Inc()
			return nil
		}
	}
	metrics.AuthzDecisionsTotal.WithLabelValues(g.name, "denied").Inc()
	return errors.AuthorizationDenied("insufficient role", g.RequiredRoles())
}
