package organization

import (
	"time"

	"github.com/tiagossm/Compia20251207-sub001/identity"
)

// Organization is a tenant. A nil parent marks a root.
type Organization struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Name                 string    `gorm:"size:255;not null" json:"name"`
	ParentOrganizationID *int64    `gorm:"index" json:"parent_organization_id,omitempty,string"`
	IsActive             bool      `gorm:"not null" json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (Organization) TableName() string { return "organizations" }

// Assignment grants a user a role within an organization beyond, or as,
// their primary one.
type Assignment struct {
	ID             int64         `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID         string        `gorm:"size:128;not null;uniqueIndex:idx_user_org" json:"user_id"`
	OrganizationID int64         `gorm:"not null;uniqueIndex:idx_user_org;index" json:"organization_id,string"`
	Role           identity.Role `gorm:"size:32" json:"role"`
	IsPrimary      bool          `gorm:"not null" json:"is_primary"`
	IsActive       bool          `gorm:"not null" json:"is_active"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (Assignment) TableName() string { return "user_organizations" }
