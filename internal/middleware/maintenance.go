package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/tourchat-backend/internal/httpx"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/service"
)

// Maintenance rejects non-admin traffic while maintenance.mode is on. Mount it
// after AuthRequired. Auth routes stay open so admins can sign in.
func Maintenance(settings *service.SettingsService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api/auth") || Role(c) == models.RoleAdmin {
			return c.Next()
		}
		if settings.Bool(service.SettingMaintenanceMode, false) {
			return httpx.Error(c, fiber.StatusServiceUnavailable, "maintenance", "Service is under maintenance")
		}
		return c.Next()
	}
}
