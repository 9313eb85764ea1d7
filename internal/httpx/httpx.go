package httpx

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/tourchat-backend/internal/apperr"
)

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func RequestID(c *fiber.Ctx) string {
	if v := c.Locals("requestid"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func Error(c *fiber.Ctx, status int, code string, message string) error {
	if message == "" {
		message = "Request failed"
	}
	return c.Status(status).JSON(ErrorResponse{
		Success:   false,
		Message:   message,
		Error:     code,
		RequestID: RequestID(c),
	})
}

func BadRequest(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusBadRequest, code, message)
}

func Unauthorized(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusUnauthorized, code, message)
}

func Forbidden(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusForbidden, code, message)
}

func Internal(c *fiber.Ctx, code string) error {
	return Error(c, fiber.StatusInternalServerError, code, "Internal server error")
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindExpired, apperr.KindInvalidState:
		return fiber.StatusBadRequest
	case apperr.KindUnauthenticated:
		return fiber.StatusUnauthorized
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindConflict:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// Fail writes err as an error envelope. Unexpected errors are returned to
// Fiber's error handler so they get logged and recorded.
func Fail(c *fiber.Ctx, err error) error {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindUnexpected {
		return err
	}
	return Error(c, StatusFor(e.Kind), e.Code, e.Message)
}

// OK writes a success envelope merging payload into the top level.
func OK(c *fiber.Ctx, payload fiber.Map) error {
	return respond(c, fiber.StatusOK, payload)
}

func Created(c *fiber.Ctx, payload fiber.Map) error {
	return respond(c, fiber.StatusCreated, payload)
}

func respond(c *fiber.Ctx, status int, payload fiber.Map) error {
	body := fiber.Map{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

func LocalUint(c *fiber.Ctx, key string) (uint, error) {
	v := c.Locals(key)
	if v == nil {
		return 0, fmt.Errorf("missing local %s", key)
	}
	u, ok := v.(uint)
	if !ok {
		return 0, fmt.Errorf("invalid local %s", key)
	}
	return u, nil
}

// ParamUint parses a positive integer route parameter.
func ParamUint(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid_id", fmt.Sprintf("Invalid %s", name))
	}
	return uint(id), nil
}
