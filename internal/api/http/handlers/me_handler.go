package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kakao-auth/internal/api/dto"
	"github.com/spec-kit/kakao-auth/internal/auth"
	"github.com/spec-kit/kakao-auth/internal/domain"
	apperrors "github.com/spec-kit/kakao-auth/pkg/util/errorutil"
)

// Me handles GET /api/me.
func Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(dto.MeResponse{ID: identity.ID, Role: identity.Role.String()})
}

// RolePing answers the role probe for role; the route guard has already checked the caller.
func RolePing(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(dto.PingResponse{OK: true, Only: role.String()})
	}
}
