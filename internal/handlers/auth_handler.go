package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/tourchat-backend/internal/httpx"
	"github.com/noteduco342/tourchat-backend/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type checkPhoneRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type verifyCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// CheckPhone sends a login code and tells the app whether to show the
// registration form afterwards.
func (h *AuthHandler) CheckPhone(c *fiber.Ctx) error {
	var req checkPhoneRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return httpx.BadRequest(c, "phone_required", "phone_number is required")
	}

	exists, err := h.authService.CheckPhone(req.PhoneNumber)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"message": "Verification code sent", "exists": exists})
}

func (h *AuthHandler) VerifyCode(c *fiber.Ctx) error {
	var req verifyCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" || strings.TrimSpace(req.Code) == "" {
		return httpx.BadRequest(c, "missing_fields", "phone_number and code are required")
	}

	result, err := h.authService.VerifyCode(req.PhoneNumber, strings.TrimSpace(req.Code))
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{
		"tokens":      result.Tokens,
		"user":        result.User,
		"is_new_user": result.IsNewUser,
	})
}

func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if req.RefreshToken == "" {
		return httpx.BadRequest(c, "refresh_token_required", "refresh_token is required")
	}

	tokens, err := h.authService.Refresh(req.RefreshToken)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"tokens": tokens})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if req.RefreshToken == "" {
		return httpx.BadRequest(c, "refresh_token_required", "refresh_token is required")
	}

	if err := h.authService.Logout(req.RefreshToken); err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"message": "Logged out"})
}
