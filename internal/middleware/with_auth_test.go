package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/middleware"
)

func withIdentity(userID uint, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID > 0 {
			c.Locals("user_id", userID)
		}
		if role != "" {
			c.Locals("user_role", role)
		}
		return c.Next()
	}
}

func TestWithAuthStudentRole(t *testing.T) {
	app := fiber.New()
	app.Use(withIdentity(10, "Student"))
	app.Get("/", middleware.WithAuth(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	}, middleware.AuthOptions{Role: middleware.AuthRoleStudent}))

	resp := perform(t, app, "/")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestWithAuthAdminRejectsStudent(t *testing.T) {
	app := fiber.New()
	app.Use(withIdentity(10, "student"))
	app.Get("/", middleware.WithAuth(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))

	resp := perform(t, app, "/")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestWithAuthAnyRequiresUser(t *testing.T) {
	app := fiber.New()
	app.Get("/", middleware.WithAuth(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}, middleware.AuthOptions{Role: middleware.AuthRoleAny}))

	resp := perform(t, app, "/")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWithAuthUnknownRoleIsForbidden(t *testing.T) {
	app := fiber.New()
	app.Use(withIdentity(1, "admin"))
	app.Get("/", middleware.WithAuth(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}, middleware.AuthOptions{Role: "teacher"}))

	resp := perform(t, app, "/")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestWithAuthSelfOrAdmin(t *testing.T) {
	cases := []struct {
		name   string
		userID uint
		role   string
		path   string
		status int
	}{
		{name: "self", userID: 7, role: "student", path: "/users/7", status: fiber.StatusOK},
		{name: "other student", userID: 8, role: "student", path: "/users/7", status: fiber.StatusForbidden},
		{name: "admin", userID: 1, role: "admin", path: "/users/7", status: fiber.StatusOK},
		{name: "malformed id", userID: 7, role: "student", path: "/users/abc", status: fiber.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(withIdentity(tc.userID, tc.role))
			app.Get("/users/:id", middleware.WithAuth(func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			}, middleware.AuthOptions{SelfParam: "id"}))

			resp := perform(t, app, tc.path)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func perform(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}
