package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kakao-auth/internal/config"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "REFRESH_TOKEN"

// RefreshCookie writes and clears the refresh token cookie. The path must match
// between the two or browsers keep the old cookie.
type RefreshCookie struct {
	cfg config.CookieConfig
}

// NewRefreshCookie builds the cookie writer.
func NewRefreshCookie(cfg config.CookieConfig) RefreshCookie {
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = "/api/auth"
	}
	if cfg.SameSite == "" {
		cfg.SameSite = fiber.CookieSameSiteLaxMode
	}
	return RefreshCookie{cfg: cfg}
}

// Set stores token for ttl.
func (rc RefreshCookie) Set(c *fiber.Ctx, token string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     rc.cfg.RefreshPath,
		MaxAge:   int(ttl / time.Second),
		Secure:   rc.cfg.Secure,
		HTTPOnly: true,
		SameSite: rc.cfg.SameSite,
	})
}

// Clear expires the cookie immediately.
func (rc RefreshCookie) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     rc.cfg.RefreshPath,
		Expires:  time.Unix(0, 0),
		Secure:   rc.cfg.Secure,
		HTTPOnly: true,
		SameSite: rc.cfg.SameSite,
	})
}

// Read returns the refresh token presented by the client.
func (rc RefreshCookie) Read(c *fiber.Ctx) string {
	return c.Cookies(RefreshCookieName)
}
