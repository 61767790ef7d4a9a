package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/logger"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// OpsKeyConfig protects operational endpoints such as /metrics. Keys
// maps a key id to its secret.
type OpsKeyConfig struct {
	Enabled bool              `yaml:"enabled" mapstructure:"enabled"`
	Keys    map[string]string `yaml:"keys" mapstructure:"keys"`
}

type OpsKeyAuth struct {
	config OpsKeyConfig
	log    *logger.Logger
}

func NewOpsKeyAuth(cfg OpsKeyConfig, log *logger.Logger) *OpsKeyAuth {
	return &OpsKeyAuth{config: cfg, log: log}
}

// Authenticate accepts X-API-Key or an Authorization bearer token.
func (a *OpsKeyAuth) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		if !a.config.Enabled {
			return c.Next()
		}

		key := c.Get("X-API-Key")
		if key == "" {
			if auth := c.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if key == "" {
			return errors.ErrAuthenticationRequired
		}

		keyID, ok := a.match(key)
		if !ok {
			a.log.Warn("invalid ops key", zap.String("ip", c.IP()), zap.String("path", c.Path()))
			return errors.ErrAuthenticationRequired
		}
		a.log.Debug("ops key accepted", zap.String("key_id", keyID), zap.String("path", c.Path()))
		return c.Next()
	}
}

func (a *OpsKeyAuth) match(key string) (string, bool) {
	for id, stored := range a.config.Keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(stored)) == 1 {
			return id, true
		}
	}
	return "", false
}
