package identity

import "time"

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// User is a person known to the system. Rows are deactivated, never deleted.
type User struct {
	ID                    string         `gorm:"primaryKey;size:128" json:"id"`
	Email                 string         `gorm:"size:320;index" json:"email"`
	Name                  string         `gorm:"size:255" json:"name"`
	Role                  Role           `gorm:"size:32;not null" json:"role"`
	OrganizationID        *int64         `gorm:"index" json:"organization_id,omitempty"`
	ManagedOrganizationID *int64         `json:"managed_organization_id,omitempty"`
	IsActive              bool           `gorm:"not null;index" json:"is_active"`
	ApprovalStatus        ApprovalStatus `gorm:"size:16;not null" json:"approval_status"`
	LastActiveAt          *time.Time     `json:"last_active_at,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// NormalizedRole returns the role class of the stored role string.
func (u *User) NormalizedRole() Role {
	return NormalizeRole(string(u.Role))
}

// ActivityStale reports whether last-active is unset or older than threshold.
func (u *User) ActivityStale(now time.Time, threshold time.Duration) bool {
	return u.LastActiveAt == nil || now.Sub(*u.LastActiveAt) > threshold
}

// ExternalIdentity is a principal already verified by an upstream
// identity provider. Only such identities may be provisioned.
type ExternalIdentity struct {
	ID    string
	Email string
	Name  string
}
