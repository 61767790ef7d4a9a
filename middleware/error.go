package middleware

import (
	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/logger"
	"github.com/tiagossm/Compia20251207-sub001/response"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// NewErrorHandler renders handler errors through response.Error. Server
// faults are logged with their cause; client errors at debug.
func NewErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		if err == nil {
			return nil
		}

		if log != nil {
			status := errors.StatusOf(err)
			fields := []zap.Field{zap.Error(err), zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Int("status", status)}
			if status >= fiber.StatusInternalServerError {
				log.WithContext(c.Context()).Error("request failed", fields...)
			} else {
				log.WithContext(c.Context()).Debug("request rejected", fields...)
			}
		}
		return response.Error(c, err)
	}
}
