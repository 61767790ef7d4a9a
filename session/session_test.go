package session

import (
	"context"
	"testing"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/cache/redis"
	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newStore(t *testing.T, cfg Config) (*Store, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(server.Close)
	rdb := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(redis.Wrap(rdb, logger.NewNop()), cfg), server
}

func TestCreateLookupRevoke(t *testing.T) {
	store, _ := newStore(t, Config{})
	ctx := context.Background()

	sess, err := store.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := store.Lookup(ctx, sess.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.UserID != "user-1" || got.CreatedAt.Unix() != sess.CreatedAt.Unix() {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := store.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := store.Lookup(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected revoked session to be gone, got %v", err)
	}
	if err := store.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
}

func TestLookupRejectsMalformedAndExpired(t *testing.T) {
	store, server := newStore(t, Config{TTL: time.Minute, KeyPrefix: "s:"})
	ctx := context.Background()

	for _, id := range []string{"", "not-a-uuid", "*", "session:../x"} {
		if _, err := store.Lookup(ctx, id); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("id %q: expected not found, got %v", id, err)
		}
	}

	sess, err := store.Create(ctx, "user-2")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !server.Exists("s:" + sess.ID) {
		t.Fatalf("expected prefixed key")
	}
	server.FastForward(2 * time.Minute)
	if _, err := store.Lookup(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestLookupStoreDown(t *testing.T) {
	store, server := newStore(t, Config{})
	sess, err := store.Create(context.Background(), "user-3")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	server.Close()

	_, err = store.Lookup(context.Background(), sess.ID)
	if !errors.Is(err, errors.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if store.CookieName() != DefaultCookieName {
		t.Fatalf("unexpected cookie name %q", store.CookieName())
	}
}
