package middleware

import (
	"strconv"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/cache/redis"
	"github.com/tiagossm/Compia20251207-sub001/errors"

	"github.com/gofiber/fiber/v3"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

const (
	defaultRateLimit  = 600
	defaultRatePeriod = time.Minute
)

type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Limit   int64         `yaml:"limit" mapstructure:"limit"`
	Period  time.Duration `yaml:"period" mapstructure:"period"`
}

// NewRateLimiter counts in redis when a client is given, in process
// memory otherwise.
func NewRateLimiter(cfg RateLimitConfig, client *redis.Client) (*limiter.Limiter, error) {
	rate := limiter.Rate{Limit: cfg.Limit, Period: cfg.Period}
	if rate.Limit <= 0 {
		rate.Limit = defaultRateLimit
	}
	if rate.Period <= 0 {
		rate.Period = defaultRatePeriod
	}

	if client == nil {
		return limiter.New(memory.NewStore(), rate), nil
	}
	store, err := redisstore.NewStoreWithOptions(client.Raw(), limiter.StoreOptions{Prefix: "ratelimit"})
	if err != nil {
		return nil, err
	}
	return limiter.New(store, rate), nil
}

// RateLimitMiddleware keys by user once Access has run, by client IP
// otherwise.
func RateLimitMiddleware(lim *limiter.Limiter) fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx, err := lim.Get(c.Context(), rateLimitKey(c))
		if err != nil {
			return errors.Wrap(errors.ErrCodeUnavailable, "rate limit check failed", err)
		}

		c.Set("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
		if ctx.Reached {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
		}
		return c.Next()
	}
}

func rateLimitKey(c fiber.Ctx) string {
	if p, ok := PrincipalFromContext(c); ok {
		return "user:" + p.User.ID
	}
	return "ip:" + c.IP()
}
