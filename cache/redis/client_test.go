package redis

import (
	"context"
	"testing"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

// startRedis wraps a client around a fresh miniredis; both are closed
// with the test.
func startRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb, logger.NewNop()), mr
}

func TestClientDel(t *testing.T) {
	client, _ := startRedis(t)
	ctx := context.Background()

	for _, key := range []string{"d1", "d2"} {
		if err := client.HSetWithTTL(ctx, key, 0, "f", "v"); err != nil {
			t.Fatalf("hset %s: %v", key, err)
		}
	}
	if err := client.Del(ctx, "d1", "d2", "missing"); err != nil {
		t.Fatalf("del: %v", err)
	}
	for _, key := range []string{"d1", "d2"} {
		if all, err := client.HGetAll(ctx, key); err != nil || len(all) != 0 {
			t.Fatalf("%s survived del: %v %v", key, all, err)
		}
	}
}

func TestClientHashWithTTL(t *testing.T) {
	client, server := startRedis(t)
	ctx := context.Background()

	if err := client.HSetWithTTL(ctx, "h1", time.Minute, "f1", "v1", "f2", "v2"); err != nil {
		t.Fatalf("hset: %v", err)
	}
	all, err := client.HGetAll(ctx, "h1")
	if err != nil || all["f1"] != "v1" || all["f2"] != "v2" {
		t.Fatalf("hgetall: %v %v", all, err)
	}
	ttl, err := client.TTL(ctx, "h1")
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v %v", ttl, err)
	}

	server.FastForward(2 * time.Minute)
	all, err = client.HGetAll(ctx, "h1")
	if err != nil || len(all) != 0 {
		t.Fatalf("expected expired hash, got %v %v", all, err)
	}
}

func TestClientSetNX(t *testing.T) {
	client, server := startRedis(t)
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "n1", 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first setnx: %v %v", ok, err)
	}
	ok, err = client.SetNX(ctx, "n1", 1, time.Minute)
	if err != nil || ok {
		t.Fatalf("second setnx must not create: %v %v", ok, err)
	}
	server.FastForward(2 * time.Minute)
	if ok, _ := client.SetNX(ctx, "n1", 1, time.Minute); !ok {
		t.Fatalf("expired key must be creatable again")
	}
}

func TestConfigAddr(t *testing.T) {
	if got := (Config{Host: "cache", Port: 6380}).Addr(); got != "cache:6380" {
		t.Fatalf("unexpected addr %q", got)
	}
}
