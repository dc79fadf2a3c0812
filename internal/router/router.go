package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/qr-attendance-api/internal/config"
	"github.com/noah-isme/qr-attendance-api/internal/handler"
	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	UserHandler       *handler.UserHandler
	SessionHandler    *handler.SessionHandler
	AttendanceHandler *handler.AttendanceHandler
	ActivityHandler   *handler.ActivityHandler
	JWTMiddleware     fiber.Handler
	LoginLimiter      fiber.Handler
	AttendanceLimiter fiber.Handler
	HealthProbes      map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	v1.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api")

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api, jwtMiddleware, deps.LoginLimiter)
	}

	if deps.UserHandler != nil {
		deps.UserHandler.Register(api.Group("/users", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleAdmin)))
	}

	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(api.Group("/sessions", jwtMiddleware))
	}

	if deps.AttendanceHandler != nil {
		deps.AttendanceHandler.Register(api.Group("/attendance", jwtMiddleware), deps.AttendanceLimiter)
	}

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(api.Group("/activity", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleAdmin)))
	}
}
