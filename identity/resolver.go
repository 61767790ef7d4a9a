package identity

import (
	"context"
	"strings"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/database"
	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/logger"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* ========================================================================
 * Identity Resolver
 * ========================================================================
 * Maps a verified user id to its active User row. Verified external
 * identities without a row are provisioned on first sight.
 * ======================================================================== */

var ErrUserNotFound = errors.New(errors.ErrCodeNotFound, "user not found")

const defaultRetryDelay = 50 * time.Millisecond

type Resolver struct {
	db         *gorm.DB
	log        *logger.Logger
	retryDelay time.Duration
}

type ResolverOption func(*Resolver)

// WithRetryDelay sets the pause before the single read retry.
func WithRetryDelay(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.retryDelay = d }
}

func NewResolver(db *gorm.DB, log *logger.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{db: db, log: log, retryDelay: defaultRetryDelay}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the active user with the given id. Missing and inactive
// users are ErrUserNotFound; store failures are StoreUnavailable after one
// retry of transient errors.
func (r *Resolver) Resolve(ctx context.Context, id string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrUserNotFound
	}

	user, err := backoff.Retry(ctx, func() (*User, error) {
		var u User
		err := r.db.WithContext(ctx).
			Where("id = ? AND is_active = ?", id, true).
			Take(&u).Error
		switch {
		case err == nil:
			return &u, nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, backoff.Permanent(ErrUserNotFound)
		case database.IsTransient(err):
			r.log.WithContext(ctx).Warn("identity lookup failed, retrying", zap.String("user_id", id), zap.Error(err))
			return nil, err
		default:
			return nil, backoff.Permanent(err)
		}
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(r.retryDelay)),
		backoff.WithMaxTries(2),
	)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "identity lookup failed", err)
	}
	return user, nil
}

// ResolveOrProvision resolves ext.ID and, when no row exists, inserts a
// pending least-privileged user. Concurrent calls for the same id yield a
// single row; the loser reads the winner's row. The second result reports
// whether this call created the row. Deactivated users stay unresolved.
func (r *Resolver) ResolveOrProvision(ctx context.Context, ext ExternalIdentity) (*User, bool, error) {
	user, err := r.Resolve(ctx, ext.ID)
	if err == nil || !errors.Is(err, ErrUserNotFound) || strings.TrimSpace(ext.ID) == "" {
		return user, false, err
	}

	candidate := User{
		ID:             ext.ID,
		Email:          strings.ToLower(strings.TrimSpace(ext.Email)),
		Name:           ext.Name,
		Role:           DefaultRole,
		IsActive:       true,
		ApprovalStatus: ApprovalPending,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&candidate)
	if res.Error != nil && !database.IsUniqueViolation(res.Error) {
		return nil, false, errors.Wrap(errors.ErrCodeStoreUnavailable, "user provisioning failed", res.Error)
	}
	created := res.Error == nil && res.RowsAffected == 1

	user, err = r.Resolve(ctx, ext.ID)
	if err != nil {
		return nil, false, err
	}
	if created {
		r.log.WithContext(ctx).Info("user provisioned from verified identity",
			zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	}
	return user, created, nil
}

// TouchLastActive stamps last_active_at when it is unset or older than
// threshold. Concurrent callers within the window write at most once.
func (r *Resolver) TouchLastActive(ctx context.Context, id string, now time.Time, threshold time.Duration) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ? AND (last_active_at IS NULL OR last_active_at < ?)", id, now.Add(-threshold)).
		Update("last_active_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
