package organization

import (
	"context"

	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/identity"
	"github.com/tiagossm/Compia20251207-sub001/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* ========================================================================
 * Assignments
 * ========================================================================
 * Every write that touches a user's primary organization runs in one
 * transaction whose first statement updates the user row. That row lock
 * serializes primary changes per user.
 * ======================================================================== */

var (
	ErrAssignmentNotFound   = errors.New(errors.ErrCodeNotFound, "organization assignment not found")
	ErrOrganizationNotFound = errors.New(errors.ErrCodeNotFound, "organization not found")
)

type IDGenerator interface {
	Generate() int64
}

type AssignmentService struct {
	db  *gorm.DB
	ids IDGenerator
	log *logger.Logger
}

func NewAssignmentService(db *gorm.DB, ids IDGenerator, log *logger.Logger) *AssignmentService {
	return &AssignmentService{db: db, ids: ids, log: log}
}

// ActiveOrganizationIDs returns the organizations of the user's active
// assignments, ascending.
func (s *AssignmentService) ActiveOrganizationIDs(ctx context.Context, userID string) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&Assignment{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("organization_id").
		Pluck("organization_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "list assignments failed", err)
	}
	return ids, nil
}

// ListActive returns the user's active assignments, primary first.
func (s *AssignmentService) ListActive(ctx context.Context, userID string) ([]Assignment, error) {
	var out []Assignment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("is_primary DESC, organization_id").
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "list assignments failed", err)
	}
	return out, nil
}

type AssignInput struct {
	UserID         string
	OrganizationID int64
	Role           identity.Role
	Primary        bool
}

// Assign creates or reactivates an assignment. It becomes primary when
// requested or when the user has no primary organization yet. Updating
// the primary assignment re-mirrors its role onto the user.
func (s *AssignmentService) Assign(ctx context.Context, in AssignInput) (*Assignment, error) {
	var result Assignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, in.UserID)
		if err != nil {
			return err
		}
		if err := requireActiveOrganization(tx, in.OrganizationID); err != nil {
			return err
		}

		row := Assignment{
			ID:             s.ids.Generate(),
			UserID:         in.UserID,
			OrganizationID: in.OrganizationID,
			Role:           in.Role,
			IsActive:       true,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "organization_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "is_active", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}

		if err := tx.Where("user_id = ? AND organization_id = ?", in.UserID, in.OrganizationID).Take(&result).Error; err != nil {
			return err
		}
		// Re-assigning the current primary changes its role, which the
		// user row mirrors.
		alreadyPrimary := result.IsPrimary ||
			(user.OrganizationID != nil && *user.OrganizationID == in.OrganizationID)
		if !in.Primary && user.OrganizationID != nil && !alreadyPrimary {
			return nil
		}
		if err := promote(tx, user, in.OrganizationID); err != nil {
			return err
		}
		return tx.Where("id = ?", result.ID).Take(&result).Error
	})
	if err != nil {
		return nil, classify(err, "assign organization failed")
	}

	s.log.WithContext(ctx).Info("organization assigned",
		zap.String("user_id", in.UserID), zap.Int64("organization_id", in.OrganizationID),
		zap.Bool("primary", result.IsPrimary))
	return &result, nil
}

// SetPrimary makes the user's active assignment in orgID the primary one,
// clears every other primary flag and mirrors the organization (and role)
// onto the user row, atomically.
func (s *AssignmentService) SetPrimary(ctx context.Context, userID string, orgID int64) (*Assignment, error) {
	var result Assignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if err := promote(tx, user, orgID); err != nil {
			return err
		}
		return tx.Where("user_id = ? AND organization_id = ?", userID, orgID).Take(&result).Error
	})
	if err != nil {
		return nil, classify(err, "set primary organization failed")
	}

	s.log.WithContext(ctx).Info("primary organization changed",
		zap.String("user_id", userID), zap.Int64("organization_id", orgID))
	return &result, nil
}

// RemoveResult reports what became of the user's primary organization.
type RemoveResult struct {
	WasPrimary bool
	// PromotedOrganizationID is the new primary, nil when the user was
	// left without organizations.
	PromotedOrganizationID *int64
}

// Remove deactivates the assignment. Removing the primary promotes the
// oldest remaining active assignment or leaves the user unassigned.
func (s *AssignmentService) Remove(ctx context.Context, userID string, orgID int64) (RemoveResult, error) {
	var result RemoveResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		var current Assignment
		err = tx.Where("user_id = ? AND organization_id = ? AND is_active = ?", userID, orgID, true).
			Take(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAssignmentNotFound
			}
			return err
		}

		err = tx.Model(&Assignment{}).
			Where("id = ?", current.ID).
			Updates(map[string]any{"is_active": false, "is_primary": false}).Error
		if err != nil {
			return err
		}

		result.WasPrimary = current.IsPrimary ||
			(user.OrganizationID != nil && *user.OrganizationID == orgID)
		if !result.WasPrimary {
			return nil
		}

		var next Assignment
		err = tx.Where("user_id = ? AND is_active = ?", userID, true).
			Order("created_at, id").
			Take(&next).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Model(&identity.User{}).
				Where("id = ?", userID).
				Update("organization_id", nil).Error
		case err != nil:
			return err
		}

		if err := promote(tx, user, next.OrganizationID); err != nil {
			return err
		}
		promoted := next.OrganizationID
		result.PromotedOrganizationID = &promoted
		return nil
	})
	if err != nil {
		return RemoveResult{}, classify(err, "remove organization failed")
	}

	fields := []zap.Field{zap.String("user_id", userID), zap.Int64("organization_id", orgID)}
	if result.PromotedOrganizationID != nil {
		fields = append(fields, zap.Int64("promoted_organization_id", *result.PromotedOrganizationID))
	} else if result.WasPrimary {
		fields = append(fields, zap.Bool("unassigned", true))
	}
	s.log.WithContext(ctx).Info("organization assignment removed", fields...)
	return result, nil
}

// lockUser touches the active user's row so the rest of the transaction
// holds its write lock, then reads it.
func lockUser(tx *gorm.DB, userID string) (*identity.User, error) {
	res := tx.Model(&identity.User{}).
		Where("id = ? AND is_active = ?", userID, true).
		UpdateColumn("updated_at", tx.NowFunc())
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, identity.ErrUserNotFound
	}

	var user identity.User
	if err := tx.Where("id = ?", userID).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func requireActiveOrganization(tx *gorm.DB, orgID int64) error {
	var count int64
	err := tx.Model(&Organization{}).Where("id = ? AND is_active = ?", orgID, true).Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// promote flips the primary flag to orgID and mirrors it onto the user.
// A system admin keeps the global role.
func promote(tx *gorm.DB, user *identity.User, orgID int64) error {
	var target Assignment
	err := tx.Where("user_id = ? AND organization_id = ? AND is_active = ?", user.ID, orgID, true).
		Take(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	err = tx.Model(&Assignment{}).
		Where("user_id = ? AND organization_id <> ? AND is_primary = ?", user.ID, orgID, true).
		Update("is_primary", false).Error
	if err != nil {
		return err
	}
	if err := tx.Model(&Assignment{}).Where("id = ?", target.ID).Update("is_primary", true).Error; err != nil {
		return err
	}

	updates := map[string]any{"organization_id": orgID}
	if target.Role != "" && !user.NormalizedRole().IsSystemAdmin() {
		updates["role"] = identity.NormalizeRole(string(target.Role))
	}
	return tx.Model(&identity.User{}).Where("id = ?", user.ID).Updates(updates).Error
}

func classify(err error, msg string) error {
	if _, ok := errors.AsBizError(err); ok {
		return err
	}
	return errors.Wrap(errors.ErrCodeStoreUnavailable, msg, err)
}
