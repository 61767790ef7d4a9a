package api

import (
	"time"

	"github.com/tiagossm/Compia20251207-sub001/audit"
	"github.com/tiagossm/Compia20251207-sub001/middleware"
	"github.com/tiagossm/Compia20251207-sub001/response"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

type tenantView struct {
	Role                  string  `json:"role"`
	Scope                 string  `json:"scope"`
	PrimaryOrganizationID *int64  `json:"primary_organization_id,omitempty"`
	OrganizationIDs       []int64 `json:"organization_ids"`
}

type meView struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	ApprovalStatus string     `json:"approval_status"`
	LastActiveAt   *time.Time `json:"last_active_at,omitempty"`
	Tenant         tenantView `json:"tenant"`
}

// me returns the caller and the scope every other endpoint applies to them.
func (h *Handler) me(c fiber.Ctx, p *middleware.Principal) error {
	tv := tenantView{
		Role:            p.Tenant.Role().String(),
		Scope:           p.Tenant.Kind().String(),
		OrganizationIDs: p.Tenant.OrganizationIDs(),
	}
	if tv.OrganizationIDs == nil {
		tv.OrganizationIDs = []int64{}
	}
	if org, ok := p.Tenant.PrimaryOrganizationID(); ok {
		tv.PrimaryOrganizationID = &org
	}
	return response.OkWithData(c, meView{
		ID:             p.User.ID,
		Email:          p.User.Email,
		Name:           p.User.Name,
		ApprovalStatus: string(p.User.ApprovalStatus),
		LastActiveAt:   p.User.LastActiveAt,
		Tenant:         tv,
	})
}

// logout revokes the cookie session. Gateway-authenticated callers have no
// session and get a plain 200.
func (h *Handler) logout(c fiber.Ctx, p *middleware.Principal) error {
	if h.sessions == nil {
		return response.Ok(c)
	}
	name := h.sessions.CookieName()
	id := c.Cookies(name)
	if id == "" {
		return response.Ok(c)
	}
	if err := h.sessions.Revoke(c.Context(), id); err != nil {
		h.log.WithContext(c.Context()).Error("session revoke failed", zap.Error(err))
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	h.emit(c, p, audit.Entry{
		Action:      audit.ActionSessionRevoked,
		Description: "session revoked by logout",
		TargetType:  "user",
		TargetID:    p.User.ID,
	})
	return response.Ok(c)
}
