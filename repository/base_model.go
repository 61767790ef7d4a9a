package repository

import (
	"time"

	"github.com/tiagossm/Compia20251207-sub001/utils/id-generator/snowflake"

	"gorm.io/gorm"
	"gorm.io/plugin/soft_delete"
)

// BaseModel carries the common columns of business tables. Deleted rows
// stay in place with deleted = 1 and are hidden from every query.
type BaseModel struct {
	ID         int64                 `json:"id,string" gorm:"primaryKey;autoIncrement:false"`
	CreateTime time.Time             `json:"create_time" gorm:"column:create_time;autoCreateTime"`
	UpdateTime time.Time             `json:"update_time" gorm:"column:update_time;autoUpdateTime"`
	Deleted    soft_delete.DeletedAt `json:"-" gorm:"column:deleted;default:0;softDelete:flag"`
}

// BeforeCreate assigns a snowflake id. Multi-replica deployments must set
// SNOWFLAKE_NODE_ID.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == 0 {
		m.ID = snowflake.Generate()
	}
	return nil
}

// TenantModel is BaseModel for rows owned by one organization.
type TenantModel struct {
	BaseModel
	OrganizationID int64 `json:"organization_id" gorm:"column:organization_id;not null;index"`
}
