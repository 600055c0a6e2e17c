package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/enrollment-service/pkg/util"
)

// AdminGuard protects the import surface with bearer tokens. When disabled
// (no secret configured) every request passes through.
type AdminGuard struct {
	tokens  *TokenManager
	enabled bool
}

// NewAdminGuard constructs the guard.
func NewAdminGuard(tokens *TokenManager, enabled bool) *AdminGuard {
	return &AdminGuard{tokens: tokens, enabled: enabled}
}

// Handle enforces a valid admin bearer token on protected routes.
func (g *AdminGuard) Handle(c *fiber.Ctx) error {
	if !g.enabled {
		return c.Next()
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}
	if err := g.tokens.ParseToken(parts[1]); err != nil {
		return apperrors.NewUnauthorized("invalid or expired token")
	}
	return c.Next()
}
