package middleware

import (
	"strings"

	"github.com/tiagossm/Compia20251207-sub001/authz"

	"github.com/gofiber/fiber/v3"
)

// RequireRoles guards a route with an allow-list of roles. It must run
// after Access. Callers without a principal get AuthorizationDenied, the
// same as callers with the wrong role. An unknown role panics when the
// route is registered.
func RequireRoles(roles ...string) fiber.Handler {
	gate := authz.MustGate(strings.Join(roles, ","), roles...)
	return func(c fiber.Ctx) error {
		var p *Principal
		if found, ok := PrincipalFromContext(c); ok {
			p = found
		}
		if p == nil {
			return gate.Check(nil)
		}
		if err := gate.Check(&p.Tenant); err != nil {
			return err
		}
		return c.Next()
	}
}
