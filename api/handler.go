package api

import (
	"context"
	"strconv"

	"github.com/tiagossm/Compia20251207-sub001/audit"
	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/identity"
	"github.com/tiagossm/Compia20251207-sub001/inspection"
	"github.com/tiagossm/Compia20251207-sub001/logger"
	"github.com/tiagossm/Compia20251207-sub001/metrics"
	"github.com/tiagossm/Compia20251207-sub001/middleware"
	"github.com/tiagossm/Compia20251207-sub001/organization"
	"github.com/tiagossm/Compia20251207-sub001/securequery"
	"github.com/tiagossm/Compia20251207-sub001/validator"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

/* ========================================================================
 * HTTP API
 * ========================================================================
 * Every handler receives the caller explicitly through
 * middleware.Protected. Client-supplied organization ids are checked
 * against the caller's scope before any store access; an id outside it is
 * rejected and audited, never replaced.
 * ======================================================================== */

type UserResolver interface {
	Resolve(ctx context.Context, id string) (*identity.User, error)
}

// AssignmentManager is implemented by *organization.AssignmentService.
type AssignmentManager interface {
	ActiveOrganizationIDs(ctx context.Context, userID string) ([]int64, error)
	Assign(ctx context.Context, in organization.AssignInput) (*organization.Assignment, error)
	SetPrimary(ctx context.Context, userID string, orgID int64) (*organization.Assignment, error)
	Remove(ctx context.Context, userID string, orgID int64) (organization.RemoveResult, error)
}

// SessionRevoker is implemented by *session.Store.
type SessionRevoker interface {
	Revoke(ctx context.Context, id string) error
	CookieName() string
}

type Params struct {
	fx.In
	Users       UserResolver
	Assignments AssignmentManager
	Inspections inspection.Repository
	Sessions    SessionRevoker `optional:"true"`
	Audit       audit.Emitter
	Validator   *validator.Validator
	Logger      *logger.Logger
}

type Handler struct {
	users       UserResolver
	assignments AssignmentManager
	inspections inspection.Repository
	sessions    SessionRevoker
	audit       audit.Emitter
	validate    *validator.Validator
	log         *logger.Logger
}

func New(p Params) *Handler {
	return &Handler{
		users:       p.Users,
		assignments: p.Assignments,
		inspections: p.Inspections,
		sessions:    p.Sessions,
		audit:       p.Audit,
		validate:    p.Validator,
		log:         p.Logger,
	}
}

// Register mounts /api/v1. The access middleware must already run on r.
func (h *Handler) Register(r fiber.Router) {
	v1 := r.Group("/api/v1")

	v1.Get("/me", middleware.Protected(h.me))
	v1.Delete("/session", middleware.Protected(h.logout))

	users := v1.Group("/users/:id/organizations", middleware.RequireRoles(string(identity.RoleOrgAdmin)))
	users.Post("/", middleware.Protected(h.assign))
	users.Put("/:orgId/primary", middleware.Protected(h.setPrimary))
	users.Delete("/:orgId", middleware.Protected(h.removeAssignment))

	insp := v1.Group("/inspections")
	insp.Get("/", middleware.Protected(h.listInspections))
	insp.Post("/",
		middleware.RequireRoles(string(identity.RoleInspector), string(identity.RoleManager), string(identity.RoleOrgAdmin)),
		middleware.Protected(h.createInspection))
	insp.Get("/:id", middleware.Protected(h.getInspection))
	insp.Delete("/:id",
		middleware.RequireRoles(string(identity.RoleManager), string(identity.RoleOrgAdmin)),
		middleware.Protected(h.deleteInspection))
}

// checkOrganization rejects and audits a client-supplied organization id
// outside the caller's scope. A nil id passes.
func (h *Handler) checkOrganization(c fiber.Ctx, p *middleware.Principal, requested *int64, target string) error {
	v := securequery.ValidateOrganization(p.Tenant, requested)
	if v.Valid {
		return nil
	}
	return h.injectionBlocked(c, p, *requested, v.Reason, target)
}

func (h *Handler) injectionBlocked(c fiber.Ctx, p *middleware.Principal, requested int64, reason, target string) error {
	metrics.TenantInjectionBlockedTotal.Inc()
	h.log.WithContext(c.Context()).Warn("tenant injection blocked",
		zap.String("user_id", p.User.ID),
		zap.Int64("requested_organization_id", requested),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
	)
	h.emit(c, p, audit.Entry{
		Action:      audit.ActionTenantInjectionBlocked,
		Description: reason,
		TargetType:  target,
		Metadata: map[string]any{
			"requested_organization_id": requested,
			"method":                    c.Method(),
			"path":                      c.Path(),
		},
	})
	return errors.Wrap(errors.ErrCodeAuthorizationDenied, "organization is outside your scope", errors.ErrTenantInjection).
		WithDetail("organization_id", requested)
}

// emit fills actor, organization and request origin from the caller.
func (h *Handler) emit(c fiber.Ctx, p *middleware.Principal, e audit.Entry) {
	e.ActorID = p.User.ID
	if e.OrganizationID == nil {
		if org, ok := p.Tenant.PrimaryOrganizationID(); ok {
			e.OrganizationID = &org
		}
	}
	e.Meta = audit.RequestMeta(c)
	h.audit.Emit(c.Context(), e)
}

func pathID(c fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(errors.ErrCodeInvalidArgument, "invalid "+name)
	}
	return id, nil
}
