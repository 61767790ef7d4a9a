package inspection

import (
	"github.com/tiagossm/Compia20251207-sub001/repository"

	"gorm.io/gorm"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Inspection is the sample organization-scoped resource. Every read and
// write goes through the scoped repository.
type Inspection struct {
	repository.TenantModel
	Title     string `gorm:"column:title;size:255;not null" json:"title"`
	Status    Status `gorm:"column:status;size:32;not null;index" json:"status"`
	CreatedBy string `gorm:"column:created_by;size:128;not null" json:"created_by"`
}

func (Inspection) TableName() string { return "inspections" }

type Repository = repository.Repository[Inspection]

func NewRepository(db *gorm.DB) (*repository.RepositoryImpl[Inspection], error) {
	return repository.NewRepository[Inspection](db,
		repository.WithSortable("title", "status", "create_time", "update_time"))
}
