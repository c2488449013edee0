package auth

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kakao-auth/internal/domain"
)

const (
	identityKey  = "auth_identity"
	bearerPrefix = "Bearer "
)

// Identity is the authenticated caller of a request.
type Identity struct {
	ID          int64
	Role        domain.Role
	Authorities []string
}

// HasAuthority reports whether the identity was granted authority.
func (i *Identity) HasAuthority(authority string) bool {
	if i == nil {
		return false
	}
	for _, a := range i.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// Gate turns the Authorization header of a request into an identity, once per request.
type Gate struct {
	tokens *TokenSigner
}

// NewGate constructs the request authentication gate.
func NewGate(tokens *TokenSigner) *Gate {
	return &Gate{tokens: tokens}
}

// Authenticate decides on a raw Authorization header value.
// It returns (nil, nil) when the request carries no usable bearer token; whether the route
// needs an identity is decided later. Rejections are ErrTokenExpired, ErrTokenInvalid or ErrAuthentication.
func (g *Gate) Authenticate(header string) (*Identity, error) {
	// the scheme match is case-sensitive; "bearer x" is treated as no token at all
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, nil
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	switch token {
	case "", "null", "undefined":
		return nil, nil
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: subject %q", ErrAuthentication, claims.Subject)
	}
	role, err := g.tokens.ExtractRole(claims)
	if err != nil {
		return nil, err
	}

	return &Identity{ID: id, Role: role, Authorities: []string{role.Authority()}}, nil
}

// Handle runs the gate as fiber middleware. Anonymous requests pass through; rejected
// tokens end the request with the core error for the error middleware to render.
func (g *Gate) Handle(c *fiber.Ctx) error {
	identity, err := g.Authenticate(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}
	if identity != nil {
		c.Locals(identityKey, identity)
	}
	return c.Next()
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (*Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*Identity)
	return identity, ok
}
