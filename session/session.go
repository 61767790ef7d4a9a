package session

import (
	"context"
	"strconv"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/cache/redis"
	"github.com/tiagossm/Compia20251207-sub001/errors"

	"github.com/google/uuid"
)

/* ========================================================================
 * Session store
 * ========================================================================
 * Sessions are issued by the login flow and stored in redis as
 *   <prefix><id> -> {user_id, created_at}
 * This service reads them to identify the caller and revokes them on
 * logout. A session only names a user; it never carries organizations.
 * ======================================================================== */

const (
	DefaultCookieName = "compia_session"
	DefaultKeyPrefix  = "session:"
	DefaultTTL        = 7 * 24 * time.Hour
)

var ErrSessionNotFound = errors.New(errors.ErrCodeUnauthenticated, "session not found")

type Config struct {
	CookieName string        `yaml:"cookie_name" mapstructure:"cookie_name"`
	KeyPrefix  string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

func (c Config) withDefaults() Config {
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	return c
}

type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

type Store struct {
	client *redis.Client
	cfg    Config
}

func NewStore(client *redis.Client, cfg Config) *Store {
	return &Store{client: client, cfg: cfg.withDefaults()}
}

// CookieName is the cookie carrying the session id.
func (s *Store) CookieName() string { return s.cfg.CookieName }

func (s *Store) key(id string) string { return s.cfg.KeyPrefix + id }

// Create stores a new session for userID.
func (s *Store) Create(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, errors.ErrInvalidArgument
	}
	sess := &Session{ID: uuid.NewString(), UserID: userID, CreatedAt: time.Now().UTC()}
	err := s.client.HSetWithTTL(ctx, s.key(sess.ID), s.cfg.TTL,
		"user_id", sess.UserID,
		"created_at", strconv.FormatInt(sess.CreatedAt.Unix(), 10),
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to store session", err)
	}
	return sess, nil
}

// Lookup returns ErrSessionNotFound for malformed, unknown or expired
// ids, and StoreUnavailable when redis cannot be reached.
func (s *Store) Lookup(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}
	fields, err := s.client.HGetAll(ctx, s.key(id))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to read session", err)
	}
	userID := fields["user_id"]
	if userID == "" {
		return nil, ErrSessionNotFound
	}
	sess := &Session{ID: id, UserID: userID}
	if ts, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		sess.CreatedAt = time.Unix(ts, 0).UTC()
	}
	return sess, nil
}

// Revoke is idempotent.
func (s *Store) Revoke(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if err := s.client.Del(ctx, s.key(id)); err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to revoke session", err)
	}
	return nil
}
