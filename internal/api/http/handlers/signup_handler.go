package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kakao-auth/internal/api/dto"
	"github.com/spec-kit/kakao-auth/internal/domain"
	"github.com/spec-kit/kakao-auth/internal/service"
	apperrors "github.com/spec-kit/kakao-auth/pkg/util/errorutil"
)

// SignupHandler completes deferred registrations.
type SignupHandler struct {
	auth   *service.AuthService
	cookie RefreshCookie
}

// NewSignupHandler constructs handler.
func NewSignupHandler(authService *service.AuthService, cookie RefreshCookie) *SignupHandler {
	return &SignupHandler{auth: authService, cookie: cookie}
}

// Customer handles POST /api/signup/customer.
func (h *SignupHandler) Customer(c *fiber.Ctx) error {
	var req dto.CustomerSignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.complete(c, domain.RoleCustomer, req.Ticket, service.SignupProfile{
		Name:        req.Name,
		Birth:       req.Birth,
		Gender:      req.Gender,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		PIN:         req.PIN,
	})
}

// Owner handles POST /api/signup/owner.
func (h *SignupHandler) Owner(c *fiber.Ctx) error {
	var req dto.OwnerSignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.complete(c, domain.RoleOwner, req.Ticket, service.SignupProfile{
		Name:        req.Name,
		Birth:       req.Birth,
		Gender:      req.Gender,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
	})
}

func (h *SignupHandler) complete(c *fiber.Ctx, role domain.Role, ticket string, profile service.SignupProfile) error {
	issued, err := h.auth.Signup(c.UserContext(), role, ticket, profile)
	if err != nil {
		return err
	}
	h.cookie.Set(c, issued.RefreshToken, issued.RefreshTTL)
	return c.JSON(tokenResponse(issued))
}
