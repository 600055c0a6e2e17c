package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/enrollment-service/internal/api/dto"
	"github.com/spec-kit/enrollment-service/internal/auth"
	"github.com/spec-kit/enrollment-service/internal/config"
	apperrors "github.com/spec-kit/enrollment-service/pkg/util"
)

// AdminHandler mints tokens for the guarded import surface.
type AdminHandler struct {
	tokens *auth.TokenManager
	cfg    config.AdminConfig
}

// NewAdminHandler constructs handler.
func NewAdminHandler(tokens *auth.TokenManager, cfg config.AdminConfig) *AdminHandler {
	return &AdminHandler{tokens: tokens, cfg: cfg}
}

// Login POST /auth/admin/login.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	if !h.cfg.GuardEnabled() {
		return apperrors.NewNotFound("admin login", nil)
	}

	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Password == "" {
		return apperrors.NewValidationError("password required", nil)
	}
	if err := auth.ComparePassword(h.cfg.PasswordBcryptHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(dto.AdminLoginResponse{Token: token, ExpiresAt: expiresAt})
}
