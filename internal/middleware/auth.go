package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/tourchat-backend/internal/httpx"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/service"
)

// TokenParser validates an access token.
type TokenParser interface {
	ParseAccessToken(token string) (*service.Claims, error)
}

// AuthRequired accepts "Authorization: Bearer <token>". WebSocket upgrades
// can not set headers from browsers, so a token query parameter is accepted
// there as well.
func AuthRequired(parser TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		var tokenString string
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return httpx.Unauthorized(c, "invalid_authorization", "Invalid authorization format")
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			return httpx.Unauthorized(c, "missing_access_token", "Missing access token")
		}

		claims, err := parser.ParseAccessToken(tokenString)
		if err != nil {
			return httpx.Fail(c, err)
		}
		if claims.Status != "" && claims.Status != models.UserActive {
			return httpx.Forbidden(c, "account_disabled", "Account is not active")
		}

		c.Locals("userID", claims.UserID)
		c.Locals("phone", claims.PhoneNumber)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

// Role reads the authenticated role set by AuthRequired.
func Role(c *fiber.Ctx) models.Role {
	role, _ := c.Locals("role").(models.Role)
	return role
}
