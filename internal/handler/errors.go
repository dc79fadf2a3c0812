package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/internal/utils"
	"github.com/noah-isme/qr-attendance-api/pkg/qrcode"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{qrcode.ErrInvalidPayload, fiber.StatusBadRequest, "invalid qr payload"},
	{service.ErrInvalidName, fiber.StatusBadRequest, "name must contain visible text"},
	{service.ErrInvalidUsername, fiber.StatusBadRequest, "username contains invalid characters"},
	{service.ErrCannotDeleteSelf, fiber.StatusBadRequest, "you cannot delete your own account"},
	{service.ErrSessionExpired, fiber.StatusBadRequest, "session has expired"},
	{service.ErrInvalidCredentials, fiber.StatusUnauthorized, "invalid username or password"},
	{service.ErrAccountDisabled, fiber.StatusForbidden, "account is disabled"},
	{service.ErrUserInactive, fiber.StatusForbidden, "user is not active"},
	{service.ErrForbidden, fiber.StatusForbidden, "insufficient permissions"},
	{service.ErrSessionNotFound, fiber.StatusNotFound, "session not found"},
	{service.ErrNoActiveSession, fiber.StatusNotFound, "no active session"},
	{service.ErrUserNotFound, fiber.StatusNotFound, "user not found"},
	{service.ErrAttendanceExists, fiber.StatusConflict, "attendance already recorded"},
	{service.ErrUsernameTaken, fiber.StatusConflict, "username already exists"},
	{service.ErrSessionConflict, fiber.StatusConflict, "another session was activated concurrently"},
}

// respondError translates service failures into API error responses. Unmapped
// errors are logged and reported as a generic 500.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, operation string) error {
	if isValidationError(err) {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", fieldErrors(err))
	}

	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			return utils.SendError(c, mapping.status, mapping.message)
		}
	}

	requestLogger(logger, c).Error().Err(err).Str("operation", operation).Msg("request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

// ErrorHandler renders errors escaping route handlers, including fiber's own
// 404/405 errors, in the standard response envelope.
func ErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	base := logger.With().Str("component", "error_handler").Logger()
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return utils.SendError(c, fiberErr.Code, fiberErr.Message)
		}
		requestLogger(base, c).Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
