package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

// Auth role constants used by WithAuth helper.
const (
	AuthRoleAny     = "any"
	AuthRoleAdmin   = "admin"
	AuthRoleStudent = "student"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role string
	// SelfParam names a route parameter holding a user id. When set, the request is
	// allowed for admins and for the user whose id matches the parameter.
	SelfParam string
}

// WithAuth wraps a handler with authentication/authorization guards. Every role,
// including AuthRoleAny, requires an authenticated user.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	return func(c *fiber.Ctx) error {
		userID, ok := CurrentUserID(c)
		if !ok {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		currentRole := CurrentRole(c)

		if opts.SelfParam != "" {
			if currentRole == AuthRoleAdmin {
				return handler(c)
			}
			target, err := strconv.ParseUint(c.Params(opts.SelfParam), 10, 64)
			if err != nil || uint(target) != userID {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
			return handler(c)
		}

		switch role {
		case AuthRoleAny:
		case AuthRoleAdmin, AuthRoleStudent:
			if currentRole != role {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		default:
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}

		return handler(c)
	}
}

// CurrentUserID returns the authenticated user id stored by JWTProtected.
func CurrentUserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("user_id").(uint)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}

// CurrentRole returns the normalised role of the authenticated user.
func CurrentRole(c *fiber.Ctx) string {
	return normalizeRole(c.Locals("user_role"))
}
