package middleware

import (
	"context"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/cache/redis"
)

// RedisNonceStore keeps gateway nonces in redis so a replay is caught
// by every replica.
type RedisNonceStore struct {
	client *redis.Client
	prefix string
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client, prefix: "auth_nonce:"}
}

func (s *RedisNonceStore) Remember(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, 1, ttl)
}
