package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/models"
)

const testSecret = "test-secret"

type revokedSet map[string]bool

func (r revokedSet) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	return r[tokenID], nil
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type accountTable map[uint]models.User

func (a accountTable) GetByID(_ context.Context, id uint) (models.User, error) {
	user, ok := a[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func newProtectedApp(revocations middleware.RevocationChecker) *fiber.App {
	return newAccountCheckedApp(revocations, nil)
}

func newAccountCheckedApp(revocations middleware.RevocationChecker, accounts middleware.AccountLoader) *fiber.App {
	app := fiber.New()
	app.Use(middleware.JWTProtected(middleware.JWTConfig{
		Secret:      testSecret,
		CookieName:  "attendance_session",
		Revocations: revocations,
		Accounts:    accounts,
	}))
	app.Get("/me", func(c *fiber.Ctx) error {
		userID, _ := middleware.CurrentUserID(c)
		return c.JSON(fiber.Map{
			"id":   userID,
			"role": middleware.CurrentRole(c),
			"jti":  middleware.TokenID(c),
		})
	})
	return app
}

func TestJWTProtectedAcceptsBearerAndCookie(t *testing.T) {
	app := newProtectedApp(nil)
	token := signToken(t, jwt.MapClaims{
		"sub":  "42",
		"role": "Student",
		"jti":  "token-1",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "attendance_session", Value: token})
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedRejectsMissingExpiredAndForeignTokens(t *testing.T) {
	app := newProtectedApp(nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	expired := signToken(t, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(-time.Minute).Unix()})
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"})
	signed, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsRevokedToken(t *testing.T) {
	app := newProtectedApp(revokedSet{"revoked": true})
	token := signToken(t, jwt.MapClaims{
		"sub": "5",
		"jti": "revoked",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedUsesStoredAccountState(t *testing.T) {
	accounts := accountTable{
		1: {ID: 1, Role: models.RoleStudent, Status: models.UserStatusActive},
		2: {ID: 2, Role: models.RoleAdmin, Status: models.UserStatusDisabled},
	}
	app := newAccountCheckedApp(nil, accounts)

	request := func(subject string) *http.Response {
		token := signToken(t, jwt.MapClaims{
			"sub":  subject,
			"role": "admin",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	resp := request("1")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Role string `json:"role"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, models.RoleStudent, body.Role)

	resp = request("2")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = request("3")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
