package api

import (
	"strconv"

	"github.com/tiagossm/Compia20251207-sub001/audit"
	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/inspection"
	"github.com/tiagossm/Compia20251207-sub001/middleware"
	"github.com/tiagossm/Compia20251207-sub001/repository"
	"github.com/tiagossm/Compia20251207-sub001/response"

	"github.com/gofiber/fiber/v3"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageBounds clamps to the first page and to [1, maxPageSize]; a missing
// or non-positive size means defaultPageSize.
func pageBounds(page, size int) (int, int) {
	if size < 1 {
		size = defaultPageSize
	}
	return max(page, 1), min(size, maxPageSize)
}

func (h *Handler) listInspections(c fiber.Ctx, p *middleware.Principal) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	size, err := queryInt(c, "page_size", defaultPageSize)
	if err != nil {
		return err
	}
	page, size = pageBounds(page, size)

	opts := []repository.Option{repository.WithOrderBy("create_time DESC")}
	if raw := c.Query("organization_id"); raw != "" {
		orgID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errors.New(errors.ErrCodeInvalidArgument, "invalid organization_id")
		}
		if err := h.checkOrganization(c, p, &orgID, "inspection"); err != nil {
			return err
		}
		opts = append(opts, repository.WithCondition("organization_id = ?", orgID))
	}
	if status := c.Query("status"); status != "" {
		opts = append(opts, repository.WithCondition("status = ?", status))
	}

	res, err := h.inspections.FindPage(c.Context(), p.Tenant, page, size, opts...)
	if err != nil {
		return err
	}
	return response.PageData(c, res.List, res.Total, res.Page, res.PageSize, res.Pages)
}

type createInspectionRequest struct {
	Title          string `json:"title" validate:"required,max=255"`
	OrganizationID *int64 `json:"organization_id" validate:"omitempty,gt=0"`
}

func (h *Handler) createInspection(c fiber.Ctx, p *middleware.Principal) error {
	var req createInspectionRequest
	if err := h.validate.Bind(c, &req); err != nil {
		return err
	}
	if err := h.checkOrganization(c, p, req.OrganizationID, "inspection"); err != nil {
		return err
	}

	row := inspection.Inspection{
		Title:     req.Title,
		Status:    inspection.StatusDraft,
		CreatedBy: p.User.ID,
	}
	if req.OrganizationID != nil {
		row.OrganizationID = *req.OrganizationID
	}
	if err := h.inspections.Create(c.Context(), p.Tenant, &row); err != nil {
		return h.storeError(c, p, err, "inspection")
	}
	h.emit(c, p, audit.Entry{
		OrganizationID: &row.OrganizationID,
		Action:         audit.ActionInspectionCreated,
		Description:    "inspection created",
		TargetType:     "inspection",
		TargetID:       strconv.FormatInt(row.ID, 10),
	})
	return response.Created(c, row)
}

func (h *Handler) getInspection(c fiber.Ctx, p *middleware.Principal) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	row, err := h.inspections.FindByID(c.Context(), p.Tenant, id)
	if err != nil {
		return err
	}
	return response.OkWithData(c, row)
}

func (h *Handler) deleteInspection(c fiber.Ctx, p *middleware.Principal) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	row, err := h.inspections.FindByID(c.Context(), p.Tenant, id)
	if err != nil {
		return err
	}
	if err := h.inspections.Delete(c.Context(), p.Tenant, id); err != nil {
		return err
	}
	h.emit(c, p, audit.Entry{
		OrganizationID: &row.OrganizationID,
		Action:         audit.ActionInspectionDeleted,
		Description:    "inspection deleted",
		TargetType:     "inspection",
		TargetID:       strconv.FormatInt(id, 10),
	})
	return response.Ok(c)
}

// storeError audits scope rejections raised inside the repository.
func (h *Handler) storeError(c fiber.Ctx, p *middleware.Principal, err error, target string) error {
	if !errors.Is(err, errors.ErrTenantInjection) {
		return err
	}
	biz, _ := errors.AsBizError(err)
	var requested int64
	if v, ok := biz.Details["organization_id"].(int64); ok {
		requested = v
	}
	reason := "organization outside caller scope"
	if cause, ok := errors.AsBizError(biz.Cause); ok {
		reason = cause.Message
	}
	return h.injectionBlocked(c, p, requested, reason, target)
}

func queryInt(c fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(errors.ErrCodeInvalidArgument, "invalid "+key)
	}
	return n, nil
}
