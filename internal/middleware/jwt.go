package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

// RevocationChecker reports whether a token id was revoked before its expiry.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AccountLoader resolves the account behind a token subject.
type AccountLoader interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
}

// JWTConfig configures JWTProtected. When Accounts is set, the role and status
// stored on the account take precedence over the token claims.
type JWTConfig struct {
	Secret      string
	CookieName  string
	Revocations RevocationChecker
	Accounts    AccountLoader
}

// JWTProtected returns a middleware that validates HMAC-signed tokens taken from the
// Authorization bearer header or, when absent, from the session cookie.
func JWTProtected(cfg JWTConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := tokenFromRequest(c, cfg.CookieName)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(cfg.Secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		userID := extractUserIDFromClaims(claims)
		if userID == nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token subject")
		}

		tokenID, _ := claims["jti"].(string)
		if cfg.Revocations != nil && tokenID != "" {
			revoked, err := cfg.Revocations.IsRevoked(c.UserContext(), tokenID)
			if err != nil {
				return utils.SendError(c, fiber.StatusServiceUnavailable, "unable to verify session")
			}
			if revoked {
				return utils.SendError(c, fiber.StatusUnauthorized, "session revoked")
			}
		}

		role := extractUserRoleFromClaims(claims)
		if cfg.Accounts != nil {
			account, err := cfg.Accounts.GetByID(c.UserContext(), *userID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return utils.SendError(c, fiber.StatusUnauthorized, "account no longer exists")
				}
				return utils.SendError(c, fiber.StatusServiceUnavailable, "unable to verify session")
			}
			if !account.IsActive() {
				return utils.SendError(c, fiber.StatusForbidden, "account disabled")
			}
			role = strings.ToLower(account.Role)
		}

		c.Locals("user_id", *userID)
		if role != "" {
			c.Locals("user_role", role)
		}
		if tokenID != "" {
			c.Locals("token_id", tokenID)
		}
		if expiresAt, err := claims.GetExpirationTime(); err == nil && expiresAt != nil {
			c.Locals("token_expires_at", expiresAt.Time)
		}

		return c.Next()
	}
}

func tokenFromRequest(c *fiber.Ctx, cookieName string) (string, error) {
	authorization := strings.TrimSpace(c.Get("Authorization"))
	if authorization != "" {
		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return "", fmt.Errorf("invalid authorization header")
		}
		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return "", fmt.Errorf("invalid token")
		}
		return tokenString, nil
	}

	if cookieName != "" {
		if cookie := strings.TrimSpace(c.Cookies(cookieName)); cookie != "" {
			return cookie, nil
		}
	}

	return "", fmt.Errorf("authentication required")
}

// TokenID returns the jti of the token that authenticated the request.
func TokenID(c *fiber.Ctx) string {
	if value, ok := c.Locals("token_id").(string); ok {
		return value
	}
	return ""
}

// TokenExpiresAt returns the expiry of the token that authenticated the request.
func TokenExpiresAt(c *fiber.Ctx) time.Time {
	if value, ok := c.Locals("token_expires_at").(time.Time); ok {
		return value
	}
	return time.Time{}
}

func extractUserIDFromClaims(claims jwt.MapClaims) *uint {
	keys := []string{"sub", "user_id", "id"}
	for _, key := range keys {
		if value, ok := claims[key]; ok {
			if normalized, err := normalizeUserID(value); err == nil && normalized > 0 {
				return &normalized
			}
		}
	}

	return nil
}

func normalizeUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported subject type")
	}
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	if value, ok := claims["role"].(string); ok {
		return strings.ToLower(strings.TrimSpace(value))
	}
	return ""
}
