package tenant

import (
	"context"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/identity"
	"github.com/tiagossm/Compia20251207-sub001/logger"
	"github.com/tiagossm/Compia20251207-sub001/metrics"

	"go.uber.org/zap"
)

// HierarchyWalker lists descendants of an organization, bounded by depth.
type HierarchyWalker interface {
	Walk(ctx context.Context, rootID int64, maxDepth int) ([]int64, error)
}

// AssignmentLister lists the organizations of a user's active assignments.
type AssignmentLister interface {
	ActiveOrganizationIDs(ctx context.Context, userID string) ([]int64, error)
}

type BuilderConfig struct {
	// SubsidiaryDepth is how many levels below the managed organization an
	// organization admin reaches. 1 means direct subsidiaries.
	SubsidiaryDepth int `yaml:"subsidiary_depth" mapstructure:"subsidiary_depth"`
}

// Builder derives a Context from store state only. It holds no cache:
// every call reflects the current assignments.
type Builder struct {
	walker      HierarchyWalker
	assignments AssignmentLister
	depth       int
	log         *logger.Logger
}

func NewBuilder(walker HierarchyWalker, assignments AssignmentLister, cfg BuilderConfig, log *logger.Logger) *Builder {
	depth := cfg.SubsidiaryDepth
	if depth <= 0 {
		depth = 1
	}
	return &Builder{walker: walker, assignments: assignments, depth: depth, log: log}
}

// Build returns the caller's Context. Store failures abort the build; a
// corrupt hierarchy is logged and the safely collected part is used.
func (b *Builder) Build(ctx context.Context, user *identity.User) (Context, error) {
	start := time.Now()
	defer func() {
		metrics.TenantContextBuildSeconds.Observe(time.Since(start).Seconds())
	}()

	role := user.NormalizedRole()
	if role.IsSystemAdmin() {
		return Unrestricted(user.ID, user.OrganizationID), nil
	}

	assigned, err := b.assignments.ActiveOrganizationIDs(ctx, user.ID)
	if err != nil {
		return Context{}, err
	}

	var orgs []int64
	if role.IsOrgAdmin() {
		if user.ManagedOrganizationID != nil {
			managed := *user.ManagedOrganizationID
			children, err := b.walker.Walk(ctx, managed, b.depth)
			if err != nil {
				if !errors.Is(err, errors.ErrHierarchyIntegrity) {
					return Context{}, err
				}
				metrics.HierarchyFaultsTotal.Inc()
				b.log.WithContext(ctx).Error("organization hierarchy integrity fault",
					zap.String("user_id", user.ID), zap.Int64("managed_organization_id", managed), zap.Error(err))
			}
			orgs = append(orgs, managed)
			orgs = append(orgs, children...)
		}
	} else if user.OrganizationID != nil {
		orgs = append(orgs, *user.OrganizationID)
	}
	orgs = append(orgs, assigned...)

	c := Restricted(user.ID, role, user.OrganizationID, orgs)
	if c.IsUnassigned() {
		b.log.WithContext(ctx).Debug("user has no organization", zap.String("user_id", user.ID))
	}
	return c, nil
}
