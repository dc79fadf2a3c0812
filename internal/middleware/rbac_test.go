package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name   string
		userID interface{}
		role   interface{}
		status int
	}{
		{name: "admin allowed", userID: uint(1), role: "admin", status: fiber.StatusOK},
		{name: "role is case insensitive", userID: uint(1), role: " Admin ", status: fiber.StatusOK},
		{name: "student forbidden", userID: uint(2), role: "student", status: fiber.StatusForbidden},
		{name: "missing role forbidden", userID: uint(3), role: nil, status: fiber.StatusForbidden},
		{name: "anonymous rejected", userID: nil, role: nil, status: fiber.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(func(c *fiber.Ctx) error {
				if tc.userID != nil {
					c.Locals("user_id", tc.userID)
				}
				if tc.role != nil {
					c.Locals("user_role", tc.role)
				}
				return c.Next()
			})
			app.Use(RequireRole(AuthRoleAdmin))
			app.Get("/admin", func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRequireRolePanicsOnUnknownRole(t *testing.T) {
	require.Panics(t, func() { RequireRole("teacher") })
}
