package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/tourchat-backend/internal/httpx"
	"github.com/noteduco342/tourchat-backend/internal/service"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	notifications, unread, err := h.notificationService.List(userID, c.QueryInt("limit", 50))
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"notifications": notifications, "unread": unread})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	id, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.Fail(c, err)
	}

	if err := h.notificationService.MarkRead(id, userID); err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"message": "Notification marked as read"})
}
