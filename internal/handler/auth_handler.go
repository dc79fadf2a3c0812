package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

// CookieOptions controls the session cookie carrying the access token.
type CookieOptions struct {
	Name   string
	Secure bool
}

// AuthHandler exposes login, logout and profile endpoints.
type AuthHandler struct {
	service service.AuthService
	cookie  CookieOptions
	logger  zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service service.AuthService, cookie CookieOptions, logger zerolog.Logger) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "attendance_token"
	}
	return &AuthHandler{
		service: service,
		cookie:  cookie,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register attaches auth endpoints. Login stays public behind the limiter;
// the remaining routes run behind the protect middleware.
func (h *AuthHandler) Register(router fiber.Router, protect fiber.Handler, loginLimiter fiber.Handler) {
	if loginLimiter != nil {
		router.Post("/login", loginLimiter, h.login)
	} else {
		router.Post("/login", h.login)
	}
	router.Post("/logout", protect, h.logout)
	router.Get("/me", protect, middleware.WithAuth(h.me, middleware.AuthOptions{Role: middleware.AuthRoleAny}))
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Login(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err, "login")
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   int(result.ExpiresIn),
		Expires:  time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
		Secure:   h.cookie.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return utils.SendSuccess(c, "login successful", result.Profile)
}

func (h *AuthHandler) logout(c *fiber.Ctx) error {
	if err := h.service.Logout(c.UserContext(), middleware.TokenID(c), middleware.TokenExpiresAt(c)); err != nil {
		return respondError(c, h.logger, err, "logout")
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   h.cookie.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return utils.SendSuccess(c, "logged out", nil)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)
	profile, err := h.service.Profile(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, err, "profile")
	}
	return utils.SendSuccess(c, "profile retrieved", profile)
}
