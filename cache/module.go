package cache

import (
	"github.com/tiagossm/Compia20251207-sub001/cache/redis"

	"go.uber.org/fx"
)

// Module provides *redis.Client. It expects a redis.Config in the graph.
var Module = fx.Module("cache",
	fx.Provide(redis.NewClient),
)
