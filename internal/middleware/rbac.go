package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/tourchat-backend/internal/access"
	"github.com/noteduco342/tourchat-backend/internal/httpx"
)

// RequireCapability rejects callers whose role lacks action. Ownership checks
// stay in the services.
func RequireCapability(action access.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !access.Can(Role(c), action) {
			return httpx.Forbidden(c, "forbidden", "Insufficient permissions")
		}
		return c.Next()
	}
}
