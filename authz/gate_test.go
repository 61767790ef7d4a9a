package authz

import (
	"slices"
	"strings"
	"testing"

	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/identity"
	"github.com/tiagossm/Compia20251207-sub001/metrics"
	"github.com/tiagossm/Compia20251207-sub001/tenant"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func ctxFor(role identity.Role, orgs ...int64) *tenant.Context {
	tc := tenant.Restricted("u", role, nil, orgs)
	return &tc
}

func TestGateNormalizesRoles(t *testing.T) {
	g, err := NewGate("test-normalize", "Company-Admin", "org_admin", "Technician")
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	if !slices.Equal(g.RequiredRoles(), []string{"org_admin", "inspector"}) {
		t.Fatalf("unexpected roles %v", g.RequiredRoles())
	}
}

func TestGateRejectsUnknownRole(t *testing.T) {
	if _, err := NewGate("test-typo", "manager", "inspektor"); err == nil || !strings.Contains(err.Error(), "inspektor") {
		t.Fatalf("expected unknown role error naming the typo, got %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("MustGate must panic on an unknown role")
		}
	}()
	MustGate("test-typo", "wizard")
}

func TestGateDecisions(t *testing.T) {
	g := MustGate("test-decisions", "org_admin", "manager")

	if err := g.Check(ctxFor(identity.RoleManager, 10)); err != nil {
		t.Fatalf("manager should pass: %v", err)
	}
	// Unassigned callers still pass a role gate; data access stays empty.
	if err := g.Check(ctxFor(identity.RoleOrgAdmin)); err != nil {
		t.Fatalf("org admin without organizations should pass the role gate: %v", err)
	}
	root := tenant.Unrestricted("root", nil)
	if err := g.Check(&root); err != nil {
		t.Fatalf("system admin must always pass: %v", err)
	}

	for _, tc := range []*tenant.Context{nil, ctxFor(identity.RoleInspector, 10), ctxFor(identity.RoleUnknown, 10)} {
		err := g.Check(tc)
		if !errors.Is(err, errors.ErrAuthorizationDenied) {
			t.Fatalf("expected denial, got %v", err)
		}
		biz, _ := errors.AsBizError(err)
		if !slices.Equal(biz.Details["required_roles"].([]string), []string{"org_admin", "manager"}) {
			t.Fatalf("denial must list required roles: %v", biz.Details)
		}
		if _, leaked := biz.Details["organization_ids"]; leaked {
			t.Fatalf("denial must not carry tenant data")
		}
	}

	if got := testutil.ToFloat64(metrics.AuthzDecisionsTotal.WithLabelValues("test-decisions", "denied")); got != 3 {
		t.Fatalf("expected 3 denials recorded, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.AuthzDecisionsTotal.WithLabelValues("test-decisions", "allowed")); got != 3 {
		t.Fatalf("expected 3 grants recorded, got %v", got)
	}
}
