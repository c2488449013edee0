package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kakao-auth/internal/api/dto"
	"github.com/spec-kit/kakao-auth/internal/auth"
	"github.com/spec-kit/kakao-auth/internal/domain"
	"github.com/spec-kit/kakao-auth/internal/service"
	apperrors "github.com/spec-kit/kakao-auth/pkg/util/errorutil"
)

// ProviderCallback finishes the external provider handshake for role and returns
// the identity the provider vouched for.
type ProviderCallback func(c *fiber.Ctx, role domain.Role) (domain.ProviderIdentity, error)

// registrationRoles maps provider registrations to the role they log into.
var registrationRoles = map[string]domain.Role{
	"kakao-customer": domain.RoleCustomer,
	"kakao-owner":    domain.RoleOwner,
}

// AuthHandler exposes login completion, refresh and logout.
type AuthHandler struct {
	auth   *service.AuthService
	cookie RefreshCookie
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookie RefreshCookie) *AuthHandler {
	return &AuthHandler{auth: authService, cookie: cookie}
}

// ProviderLogin handles GET /login/oauth2/code/:registration. The callback runs the
// handshake; the result is rendered by LoginSucceeded.
func (h *AuthHandler) ProviderLogin(callback ProviderCallback) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := registrationRoles[c.Params("registration")]
		if !ok {
			return fiber.ErrNotFound
		}
		identity, err := callback(c, role)
		if err != nil {
			return err
		}
		return h.LoginSucceeded(c, identity, role)
	}
}

// LoginSucceeded renders a finished provider login. Known accounts receive the
// refresh cookie and an access token; unknown identities receive a signup ticket.
func (h *AuthHandler) LoginSucceeded(c *fiber.Ctx, identity domain.ProviderIdentity, role domain.Role) error {
	result, err := h.auth.CompleteLogin(c.UserContext(), identity, role)
	if err != nil {
		return err
	}

	if result.Status == domain.LoginStatusSignupRequired {
		return c.JSON(dto.LoginResponse{
			Status:    string(result.Status),
			Role:      result.Role.String(),
			Ticket:    result.Ticket,
			ExpiresIn: int64(result.TicketExpiresIn / time.Second),
		})
	}

	issued := result.Tokens
	h.cookie.Set(c, issued.RefreshToken, issued.RefreshTTL)
	return c.JSON(dto.LoginResponse{
		Status:      string(result.Status),
		Role:        issued.Role.String(),
		AccessToken: issued.AccessToken,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   int64(issued.AccessExpiresIn / time.Second),
	})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token := strings.TrimSpace(h.cookie.Read(c))
	if token == "" {
		return apperrors.NewRefreshTokenMissing()
	}

	issued, err := h.auth.Refresh(c.UserContext(), token)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshInvalid) {
			h.cookie.Clear(c)
		}
		return err
	}

	h.cookie.Set(c, issued.RefreshToken, issued.RefreshTTL)
	return c.JSON(tokenResponse(issued))
}

// Logout handles POST /api/auth/logout. It always succeeds.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if token := strings.TrimSpace(h.cookie.Read(c)); token != "" {
		h.auth.Logout(c.UserContext(), token)
	}
	h.cookie.Clear(c)
	return c.JSON(dto.StatusResponse{Status: "SUCCESS", Message: "logged out"})
}

func tokenResponse(issued *domain.IssuedTokens) dto.TokenResponse {
	return dto.TokenResponse{
		Status:      "SUCCESS",
		Role:        issued.Role.String(),
		AccessToken: issued.AccessToken,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   int64(issued.AccessExpiresIn / time.Second),
	}
}
