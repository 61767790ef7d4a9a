package api

import (
	"slices"

	"github.com/tiagossm/Compia20251207-sub001/audit"
	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/identity"
	"github.com/tiagossm/Compia20251207-sub001/middleware"
	"github.com/tiagossm/Compia20251207-sub001/organization"
	"github.com/tiagossm/Compia20251207-sub001/response"

	"github.com/gofiber/fiber/v3"
)

var errTargetNotFound = errors.New(errors.ErrCodeNotFound, "user not found")

type assignRequest struct {
	OrganizationID int64  `json:"organization_id" validate:"required,gt=0"`
	Role           string `json:"role" validate:"required,role" error_msg:"role:must be one of system_admin, org_admin, manager, inspector, client"`
	Primary        bool   `json:"primary"`
}

func (h *Handler) assign(c fiber.Ctx, p *middleware.Principal) error {
	userID := c.Params("id")
	var req assignRequest
	if err := h.validate.Bind(c, &req); err != nil {
		return err
	}
	if err := h.checkOrganization(c, p, &req.OrganizationID, "user_organization"); err != nil {
		return err
	}
	if err := h.requireVisibleUser(c, p, userID); err != nil {
		return err
	}
	role := identity.NormalizeRole(req.Role)
	if role == identity.RoleSystemAdmin && !p.Tenant.IsSystemAdmin() {
		return errors.AuthorizationDenied("only system administrators grant system_admin", []string{identity.RoleSystemAdmin.String()})
	}

	a, err := h.assignments.Assign(c.Context(), organization.AssignInput{
		UserID:         userID,
		OrganizationID: req.OrganizationID,
		Role:           role,
		Primary:        req.Primary,
	})
	if err != nil {
		return err
	}
	h.emit(c, p, audit.Entry{
		OrganizationID: &a.OrganizationID,
		Action:         audit.ActionAssignmentCreated,
		Description:    "organization assigned",
		TargetType:     "user",
		TargetID:       userID,
		Metadata:       map[string]any{"role": role.String(), "primary": a.IsPrimary},
	})
	return response.Created(c, a)
}

func (h *Handler) setPrimary(c fiber.Ctx, p *middleware.Principal) error {
	userID := c.Params("id")
	orgID, err := pathID(c, "orgId")
	if err != nil {
		return err
	}
	if err := h.checkOrganization(c, p, &orgID, "user_organization"); err != nil {
		return err
	}
	if err := h.requireVisibleUser(c, p, userID); err != nil {
		return err
	}

	a, err := h.assignments.SetPrimary(c.Context(), userID, orgID)
	if err != nil {
		return err
	}
	h.emit(c, p, audit.Entry{
		OrganizationID: &orgID,
		Action:         audit.ActionPrimaryChanged,
		Description:    "primary organization changed",
		TargetType:     "user",
		TargetID:       userID,
	})
	return response.OkWithData(c, a)
}

type removeView struct {
	WasPrimary             bool   `json:"was_primary"`
	PromotedOrganizationID *int64 `json:"promoted_organization_id,omitempty"`
}

func (h *Handler) removeAssignment(c fiber.Ctx, p *middleware.Principal) error {
	userID := c.Params("id")
	orgID, err := pathID(c, "orgId")
	if err != nil {
		return err
	}
	if err := h.checkOrganization(c, p, &orgID, "user_organization"); err != nil {
		return err
	}
	if err := h.requireVisibleUser(c, p, userID); err != nil {
		return err
	}

	res, err := h.assignments.Remove(c.Context(), userID, orgID)
	if err != nil {
		return err
	}
	meta := map[string]any{"was_primary": res.WasPrimary}
	if res.PromotedOrganizationID != nil {
		meta["promoted_organization_id"] = *res.PromotedOrganizationID
	}
	h.emit(c, p, audit.Entry{
		OrganizationID: &orgID,
		Action:         audit.ActionAssignmentRemoved,
		Description:    "organization assignment removed",
		TargetType:     "user",
		TargetID:       userID,
		Metadata:       meta,
	})
	return response.OkWithData(c, removeView{WasPrimary: res.WasPrimary, PromotedOrganizationID: res.PromotedOrganizationID})
}

// requireVisibleUser answers NotFound for users the caller may not manage,
// so the response does not reveal whether they exist. Users without any
// organization are visible for onboarding.
func (h *Handler) requireVisibleUser(c fiber.Ctx, p *middleware.Principal, userID string) error {
	if userID == "" {
		return errTargetNotFound
	}
	target, err := h.users.Resolve(c.Context(), userID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return errTargetNotFound
		}
		return err
	}
	if p.Tenant.IsSystemAdmin() {
		return nil
	}

	orgs, err := h.assignments.ActiveOrganizationIDs(c.Context(), target.ID)
	if err != nil {
		return err
	}
	for _, id := range []*int64{target.OrganizationID, target.ManagedOrganizationID} {
		if id != nil && !slices.Contains(orgs, *id) {
			orgs = append(orgs, *id)
		}
	}
	if len(orgs) == 0 || len(p.Tenant.FilterAllowed(orgs)) > 0 {
		return nil
	}
	return errTargetNotFound
}
