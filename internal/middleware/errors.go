package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/httpx"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/service"
	"github.com/sirupsen/logrus"
)

// ErrorHandler is the Fiber error handler. Errors reaching it are either
// Fiber's own (404 routes, body limits) or unexpected failures, which are
// logged and recorded in the system log.
func ErrorHandler(log logrus.FieldLogger, logs *service.LogService) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return httpx.Error(c, fe.Code, "", fe.Message)
		}

		code := "internal_error"
		if e, ok := apperr.As(err); ok {
			if e.Kind != apperr.KindUnexpected {
				return httpx.Error(c, httpx.StatusFor(e.Kind), e.Code, e.Message)
			}
			code = e.Code
		}

		requestID := httpx.RequestID(c)
		fields := logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"request_id": requestID,
			"code":       code,
		}
		log.WithError(err).WithFields(fields).Error("request failed")

		entry := service.LogEntry{
			Level:     models.LevelError,
			Category:  models.CategoryAPI,
			Message:   err.Error(),
			Details:   map[string]interface{}{"method": c.Method(), "path": c.Path(), "code": code},
			RequestID: requestID,
		}
		if userID, ok := c.Locals("userID").(uint); ok {
			entry.UserID = &userID
		}
		logs.Record(entry)

		return httpx.Internal(c, code)
	}
}
