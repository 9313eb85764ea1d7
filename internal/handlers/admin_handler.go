package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/tourchat-backend/internal/httpx"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/repository"
	"github.com/noteduco342/tourchat-backend/internal/service"
)

// AdminHandler serves the admin console. Routes are mounted behind
// RequireCapability(access.AdminConsole).
type AdminHandler struct {
	adminService    *service.AdminService
	logService      *service.LogService
	settingsService *service.SettingsService
}

func NewAdminHandler(adminService *service.AdminService, logService *service.LogService, settingsService *service.SettingsService) *AdminHandler {
	return &AdminHandler{
		adminService:    adminService,
		logService:      logService,
		settingsService: settingsService,
	}
}

type statusRequest struct {
	Status models.UserStatus `json:"status"`
	Reason string            `json:"reason"`
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
}

type settingRequest struct {
	Value interface{} `json:"value"`
}

func pageFromQuery(c *fiber.Ctx) repository.Page {
	return repository.Page{Page: c.QueryInt("page", 1), Limit: c.QueryInt("limit", 20)}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	page, err := h.adminService.ListUsers(repository.UserFilter{
		Page:   pageFromQuery(c),
		Role:   models.Role(c.Query("role")),
		Status: models.UserStatus(c.Query("status")),
	})
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"users": page.Users, "pagination": paginationOf(page.Total, page.Page, page.Pages, page.Limit)})
}

func (h *AdminHandler) ListGuides(c *fiber.Ctx) error {
	page, err := h.adminService.ListGuides(models.UserStatus(c.Query("status")), pageFromQuery(c))
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"guides": page.Users, "pagination": paginationOf(page.Total, page.Page, page.Pages, page.Limit)})
}

func paginationOf(total int64, page, pages, limit int) fiber.Map {
	return fiber.Map{"total": total, "page": page, "pages": pages, "limit": limit}
}

func (h *AdminHandler) UpdateUserStatus(c *fiber.Ctx) error {
	return h.updateStatus(c, h.adminService.UpdateUserStatus)
}

func (h *AdminHandler) UpdateGuideStatus(c *fiber.Ctx) error {
	return h.updateStatus(c, h.adminService.UpdateGuideStatus)
}

func (h *AdminHandler) updateStatus(c *fiber.Ctx, update func(actorID, userID uint, status models.UserStatus, reason string) (*models.User, error)) error {
	actorID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	userID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.Fail(c, err)
	}

	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	user, err := update(actorID, userID, req.Status, strings.TrimSpace(req.Reason))
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"user": user.ToResponse()})
}

func (h *AdminHandler) UpdateUserRole(c *fiber.Ctx) error {
	actorID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	userID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.Fail(c, err)
	}

	var req roleRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	user, err := h.adminService.UpdateUserRole(actorID, userID, req.Role)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"user": user.ToResponse()})
}

// ListLogs filters by level, category and resolved=true|false.
func (h *AdminHandler) ListLogs(c *fiber.Ctx) error {
	filter := repository.LogFilter{
		Page:     pageFromQuery(c),
		Level:    models.LogLevel(c.Query("level")),
		Category: models.LogCategory(c.Query("category")),
	}
	switch c.Query("resolved") {
	case "true":
		resolved := true
		filter.Resolved = &resolved
	case "false":
		resolved := false
		filter.Resolved = &resolved
	}

	page, err := h.logService.List(filter)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"logs": page.Logs, "pagination": paginationOf(page.Total, page.Page, page.Pages, page.Limit)})
}

func (h *AdminHandler) ResolveLog(c *fiber.Ctx) error {
	actorID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	id, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.Fail(c, err)
	}

	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	if err := h.logService.Resolve(id, actorID, strings.TrimSpace(req.Resolution)); err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"message": "Log resolved"})
}

func (h *AdminHandler) ListSettings(c *fiber.Ctx) error {
	settings, err := h.settingsService.List()
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"settings": settings})
}

func (h *AdminHandler) UpdateSetting(c *fiber.Ctx) error {
	actorID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var req settingRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	setting, err := h.settingsService.Update(c.Params("key"), req.Value, actorID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"setting": setting})
}
