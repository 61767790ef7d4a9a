package audit

import (
	"context"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/database"
)

/* ========================================================================
 * Audit
 * ========================================================================
 * Append-only record of security and business actions. Emit is fire and
 * forget: it never fails the caller, and sink errors are logged and
 * counted only.
 * ======================================================================== */

// Action classifications.
const (
	ActionTenantInjectionBlocked = "security.tenant_injection_blocked"
	ActionUserProvisioned        = "user.provisioned"
	ActionSessionRevoked         = "session.revoked"
	ActionAssignmentCreated      = "organization.assignment_created"
	ActionPrimaryChanged         = "organization.primary_changed"
	ActionAssignmentRemoved      = "organization.assignment_removed"
	ActionInspectionCreated      = "inspection.created"
	ActionInspectionDeleted      = "inspection.deleted"
)

// Entry is what callers hand to Emit.
type Entry struct {
	ActorID        string
	OrganizationID *int64
	Action         string
	Description    string
	TargetType     string
	TargetID       string
	Metadata       map[string]any

	Meta Meta
}

// Record is the persisted shape; rows are never updated.
type Record struct {
	ID             string         `gorm:"column:id;type:char(26);primaryKey" json:"id"`
	ActorID        string         `gorm:"column:actor_id;type:varchar(64);index" json:"actor_id"`
	OrganizationID *int64         `gorm:"column:organization_id;index" json:"organization_id,omitempty"`
	Action         string         `gorm:"column:action;type:varchar(64);not null;index" json:"action"`
	Description    string         `gorm:"column:description;type:text" json:"description"`
	TargetType     string         `gorm:"column:target_type;type:varchar(64)" json:"target_type,omitempty"`
	TargetID       string         `gorm:"column:target_id;type:varchar(64)" json:"target_id,omitempty"`
	Metadata       database.JSONB `gorm:"column:metadata" json:"metadata,omitempty"`
	IPAddress      string         `gorm:"column:ip_address;type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent      string         `gorm:"column:user_agent;type:varchar(512)" json:"user_agent,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (Record) TableName() string { return "audit_logs" }

// Emitter never returns an error.
type Emitter interface {
	Emit(ctx context.Context, e Entry)
}

// Sink persists records. Write may block; it runs on emitter workers.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec *Record) error
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Emit(context.Context, Entry) {}
