package tenant

import (
	"context"
	"slices"
	"testing"

	"github.com/tiagossm/Compia20251207-sub001/database/sqlite"
	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/identity"
	"github.com/tiagossm/Compia20251207-sub001/logger"
	"github.com/tiagossm/Compia20251207-sub001/organization"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func ptr(v int64) *int64 { return &v }

func TestZeroContextDeniesEverything(t *testing.T) {
	var c Context
	if c.Allows(1) || c.IsSystemAdmin() {
		t.Fatalf("zero context must deny")
	}
	if c.Kind() != ScopeOrganizations || len(c.OrganizationIDs()) != 0 {
		t.Fatalf("zero context must be an empty organization scope")
	}
}

func TestRestrictedNormalizesAndCopies(t *testing.T) {
	input := []int64{12, 10, 12, 11}
	primary := int64(10)
	c := Restricted("u", identity.RoleManager, &primary, input)

	input[0] = 99
	primary = 99
	got := c.OrganizationIDs()
	if !slices.Equal(got, []int64{10, 11, 12}) {
		t.Fatalf("unexpected ids: %v", got)
	}
	got[0] = 99
	if c.Allows(99) {
		t.Fatalf("context widened through returned slice")
	}
	if p, ok := c.PrimaryOrganizationID(); !ok || p != 10 {
		t.Fatalf("primary aliased caller memory: %d", p)
	}
	if !slices.Equal(c.FilterAllowed([]int64{9, 10, 12, 13}), []int64{10, 12}) {
		t.Fatalf("unexpected filter result")
	}
}

func TestRestrictedEmptyIsUnassigned(t *testing.T) {
	c := Restricted("u", identity.RoleInspector, nil, nil)
	if !c.IsUnassigned() || c.Allows(1) || c.IsSystemAdmin() {
		t.Fatalf("expected unassigned deny-all context: %+v", c)
	}
}

func TestUnrestrictedAllowsAll(t *testing.T) {
	c := Unrestricted("root", nil)
	if !c.IsSystemAdmin() || !c.Allows(123456) {
		t.Fatalf("expected unrestricted context")
	}
	if len(c.OrganizationIDs()) != 0 {
		t.Fatalf("unrestricted context must not carry a set")
	}
}

type fixture struct {
	db      *gorm.DB
	builder *Builder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := sqlite.NewMemoryDB(uuid.NewString(), logger.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&identity.User{}, &organization.Organization{}, &organization.Assignment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	orgs := []organization.Organization{
		{ID: 10, Name: "holding", IsActive: true},
		{ID: 11, Name: "plant a", ParentOrganizationID: ptr(10), IsActive: true},
		{ID: 12, Name: "plant b", ParentOrganizationID: ptr(10), IsActive: true},
		{ID: 13, Name: "plant a annex", ParentOrganizationID: ptr(11), IsActive: true},
		{ID: 20, Name: "other", IsActive: true},
		{ID: 30, Name: "contractor", IsActive: true},
	}
	if err := db.Create(&orgs).Error; err != nil {
		t.Fatalf("seed orgs: %v", err)
	}
	svc := organization.NewAssignmentService(db, nil, logger.NewNop())
	b := NewBuilder(organization.NewWalker(db), svc, BuilderConfig{}, logger.NewNop())
	return fixture{db: db, builder: b}
}

func (f fixture) assign(t *testing.T, userID string, orgID int64) {
	t.Helper()
	row := organization.Assignment{ID: orgID*1000 + int64(len(userID)), UserID: userID, OrganizationID: orgID, Role: identity.RoleInspector, IsActive: true}
	if err := f.db.Create(&row).Error; err != nil {
		t.Fatalf("assign: %v", err)
	}
}

func TestBuildNonAdminScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := &identity.User{ID: "insp", Role: "Inspector", OrganizationID: ptr(20)}
	c, err := f.builder.Build(ctx, user)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !slices.Equal(c.OrganizationIDs(), []int64{20}) || c.IsSystemAdmin() {
		t.Fatalf("expected exactly primary org: %v", c.OrganizationIDs())
	}

	f.assign(t, "insp", 30)
	c, err = f.builder.Build(ctx, user)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !slices.Equal(c.OrganizationIDs(), []int64{20, 30}) {
		t.Fatalf("expected primary plus assignment: %v", c.OrganizationIDs())
	}

	orphan := &identity.User{ID: "orphan", Role: "client"}
	c, err = f.builder.Build(ctx, orphan)
	if err != nil {
		t.Fatalf("build orphan: %v", err)
	}
	if !c.IsUnassigned() || c.Allows(20) {
		t.Fatalf("expected unassigned deny-all context")
	}
}

func TestBuildOrgAdminScopeIgnoresPrimary(t *testing.T) {
	f := newFixture(t)
	user := &identity.User{ID: "boss", Role: "org_admin", ManagedOrganizationID: ptr(10), OrganizationID: ptr(20)}
	f.assign(t, "boss", 30)

	c, err := f.builder.Build(context.Background(), user)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !slices.Equal(c.OrganizationIDs(), []int64{10, 11, 12, 30}) {
		t.Fatalf("unexpected org-admin scope: %v", c.OrganizationIDs())
	}
	if c.Allows(13) {
		t.Fatalf("grandchildren are outside the default depth")
	}
	if c.Allows(20) {
		t.Fatalf("primary organization must not widen an org-admin scope")
	}
}

func TestBuildOrgAdminWithoutManagedOrg(t *testing.T) {
	f := newFixture(t)
	c, err := f.builder.Build(context.Background(), &identity.User{ID: "lonely", Role: "org_admin"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !c.IsUnassigned() {
		t.Fatalf("expected unassigned scope, got %v", c.OrganizationIDs())
	}
}

func TestBuildSystemAdminUnrestricted(t *testing.T) {
	f := newFixture(t)
	for _, role := range []identity.Role{"system_admin", "SYSADMIN", "super-admin"} {
		for _, primary := range []*int64{nil, ptr(20)} {
			c, err := f.builder.Build(context.Background(), &identity.User{ID: "root", Role: role, OrganizationID: primary})
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if !c.IsSystemAdmin() || !c.Allows(999) {
				t.Fatalf("role %q must be unrestricted", role)
			}
		}
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	f := newFixture(t)
	user := &identity.User{ID: "boss", Role: "org_admin", ManagedOrganizationID: ptr(10)}

	first, err := f.builder.Build(context.Background(), user)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := f.builder.Build(context.Background(), user)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("expected equal contexts: %v vs %v", first.OrganizationIDs(), second.OrganizationIDs())
	}
}

func TestBuildSurvivesHierarchyCycle(t *testing.T) {
	f := newFixture(t)
	cyclic := []organization.Organization{
		{ID: 50, Name: "a", ParentOrganizationID: ptr(51), IsActive: true},
		{ID: 51, Name: "b", ParentOrganizationID: ptr(50), IsActive: true},
	}
	if err := f.db.Create(&cyclic).Error; err != nil {
		t.Fatalf("seed cycle: %v", err)
	}
	b := NewBuilder(organization.NewWalker(f.db), organization.NewAssignmentService(f.db, nil, logger.NewNop()),
		BuilderConfig{SubsidiaryDepth: organization.MaxDepth}, logger.NewNop())

	c, err := b.Build(context.Background(), &identity.User{ID: "boss", Role: "org_admin", ManagedOrganizationID: ptr(50)})
	if err != nil {
		t.Fatalf("cycle must not fail the build: %v", err)
	}
	if !slices.Equal(c.OrganizationIDs(), []int64{50, 51}) {
		t.Fatalf("unexpected scope: %v", c.OrganizationIDs())
	}
}

type failingAssignments struct{}

func (failingAssignments) ActiveOrganizationIDs(context.Context, string) ([]int64, error) {
	return nil, errors.ErrStoreUnavailable
}

func TestBuildFailsClosedOnStoreError(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder(organization.NewWalker(f.db), failingAssignments{}, BuilderConfig{}, logger.NewNop())

	_, err := b.Build(context.Background(), &identity.User{ID: "insp", Role: "inspector", OrganizationID: ptr(20)})
	if !errors.Is(err, errors.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}
