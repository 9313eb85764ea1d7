package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/httpx"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/service"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

type syncRequest struct {
	Messages []service.SyncMessageInput `json:"messages"`
}

type readRequest struct {
	GroupID    uint   `json:"group_id"`
	MessageIDs []uint `json:"message_ids"`
}

// parseLastSync accepts RFC3339 timestamps or Unix milliseconds. Empty and
// "0" mean the whole history. Stored sent_at values are millisecond
// precision, so either form is an exact cursor.
func parseLastSync(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return nil, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ms < 0 {
			return nil, apperr.Validation("invalid_last_sync_time", "last_sync_time must not be negative")
		}
		t := time.UnixMilli(ms).UTC()
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, apperr.Validation("invalid_last_sync_time", "last_sync_time must be RFC3339 or Unix milliseconds")
	}
	return &t, nil
}

// Sync stores a batch of offline-composed messages. Re-sending a batch is
// safe; existing records are returned unchanged.
func (h *MessageHandler) Sync(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var req syncRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	messages, err := h.messageService.SyncBatch(userID, req.Messages)
	if err != nil {
		return httpx.Fail(c, err)
	}
	out := make([]models.MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, messages[i].ToResponse())
	}
	return httpx.OK(c, fiber.Map{"messages": out, "synced_at": time.Now().UTC()})
}

func (h *MessageHandler) Pull(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.Fail(c, err)
	}
	since, err := parseLastSync(c.Query("last_sync_time", c.Query("lastSyncTime")))
	if err != nil {
		return httpx.Fail(c, err)
	}

	messages, err := h.messageService.Pull(groupID, userID, since)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"messages": messages, "count": len(messages)})
}

func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var req readRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if req.GroupID == 0 {
		return httpx.BadRequest(c, "group_id_required", "group_id is required")
	}

	readAt, n, err := h.messageService.MarkRead(req.GroupID, userID, req.MessageIDs)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"read_at": readAt, "marked": n})
}
