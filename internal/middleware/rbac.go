package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

var knownRoles = map[string]struct{}{
	AuthRoleAdmin:   {},
	AuthRoleStudent: {},
}

// RequireRole guards a whole route group, admitting authenticated users that
// hold one of roles. Unknown role names panic at registration.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := normalizeRole(role)
		if _, ok := knownRoles[normalized]; !ok {
			panic(fmt.Sprintf("middleware: unknown role %q", role))
		}
		allowed[normalized] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := CurrentUserID(c); !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if _, ok := allowed[CurrentRole(c)]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		return ""
	}
}
