package handlers

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/tourchat-backend/internal/httpx"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/service"
	"github.com/sirupsen/logrus"
)

type MediaHandler struct {
	mediaService *service.MediaService
	log          logrus.FieldLogger
}

func NewMediaHandler(mediaService *service.MediaService, log logrus.FieldLogger) *MediaHandler {
	return &MediaHandler{mediaService: mediaService, log: log}
}

func normalizeETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, "\"")
	return v
}

func storageUnavailable(c *fiber.Ctx) error {
	return httpx.Error(c, fiber.StatusServiceUnavailable, "storage_not_configured", "Storage not configured")
}

// Upload accepts a multipart form with "file", "group_id" and an optional
// "type" (image or file, default image).
func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	groupID, err := strconv.ParseUint(c.FormValue("group_id"), 10, 64)
	if err != nil || groupID == 0 {
		return httpx.BadRequest(c, "group_id_required", "group_id is required")
	}
	kind := models.MessageType(c.FormValue("type", string(models.ImageMessage)))

	fh, err := c.FormFile("file")
	if err != nil {
		return httpx.BadRequest(c, "missing_file", "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return httpx.BadRequest(c, "invalid_file", "Invalid file")
	}
	defer f.Close()

	att, err := h.mediaService.Upload(c.Context(), userID, uint(groupID), kind, f, "/api")
	if err != nil {
		if errors.Is(err, service.ErrStorageNotConfigured) {
			return storageUnavailable(c)
		}
		return httpx.Fail(c, err)
	}
	return httpx.Created(c, fiber.Map{"attachment": att})
}

// Download streams an attachment to a member of the owning group.
func (h *MediaHandler) Download(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	key := strings.TrimSpace(c.Params("*"))
	obj, st, err := h.mediaService.Open(c.Context(), userID, key)
	if err != nil {
		if errors.Is(err, service.ErrStorageNotConfigured) {
			return storageUnavailable(c)
		}
		return httpx.Fail(c, err)
	}
	logger := h.log.WithFields(logrus.Fields{"key": key, "user_id": userID})

	if etag := st.ETag; etag != "" {
		c.Set("ETag", "\""+etag+"\"")
		if inm := normalizeETag(c.Get("If-None-Match")); inm != "" && inm == normalizeETag(etag) {
			_ = obj.Close()
			return c.SendStatus(fiber.StatusNotModified)
		}
	}
	if !st.LastModified.IsZero() {
		c.Set("Last-Modified", st.LastModified.UTC().Format(time.RFC1123))
	}

	// Keys are never reused, so the object is immutable.
	c.Set("Cache-Control", "private, max-age=31536000, immutable")
	contentType := st.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	if st.Size > 0 {
		c.Set("Content-Length", strconv.FormatInt(st.Size, 10))
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			_ = obj.Close()
		}()

		n, copyErr := io.Copy(w, obj)
		if copyErr == nil {
			copyErr = w.Flush()
		}
		if copyErr != nil {
			logger.WithError(copyErr).WithField("bytes", n).Warn("attachment stream failed")
			return
		}
		logger.WithField("bytes", n).Debug("attachment streamed")
	})
	return nil
}
