package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/kakao-auth/internal/api/http/handlers"
	"github.com/spec-kit/kakao-auth/internal/auth"
	"github.com/spec-kit/kakao-auth/internal/domain"
	"github.com/spec-kit/kakao-auth/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Signup *handlers.SignupHandler
	Gate   *auth.Gate
	// ProviderCallback is supplied by the provider handshake. The login
	// callback route is only registered when it is set.
	ProviderCallback handlers.ProviderCallback
}

// ServerConfig bundles everything NewApp needs.
type ServerConfig struct {
	AppName        string
	RequestTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Routes         RouteConfig
}

// NewApp builds the fiber application with global middlewares and routes.
func NewApp(cfg ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, cfg.Logger, cfg.Metrics, cfg.RequestTimeout)
	RegisterRoutes(app, cfg.Routes)
	return app
}

// RegisterRoutes wires HTTP routes. The gate runs for every route after health and
// the login callback; it only rejects requests presenting a bad token.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.ProviderCallback != nil {
		app.Get("/login/oauth2/code/:registration", cfg.Auth.ProviderLogin(cfg.ProviderCallback))
	}

	app.Use(cfg.Gate.Handle)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)

	signup := api.Group("/signup")
	signup.Post("/customer", cfg.Signup.Customer)
	signup.Post("/owner", cfg.Signup.Owner)

	api.Get("/me", auth.RequireAuthenticated(), handlers.Me)
	api.Get("/customer/ping", auth.RequireRole(domain.RoleCustomer), handlers.RolePing(domain.RoleCustomer))
	api.Get("/owner/ping", auth.RequireRole(domain.RoleOwner), handlers.RolePing(domain.RoleOwner))
}
