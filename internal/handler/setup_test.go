package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/qr-attendance-api/internal/config"
	"github.com/noah-isme/qr-attendance-api/internal/database"
	"github.com/noah-isme/qr-attendance-api/internal/handler"
	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/internal/router"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

const (
	testSecret     = "handler-test-secret"
	testCookieName = "attendance_session"
	testPassword   = "secret123"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
	Message string          `json:"message"`
}

type testApp struct {
	app *fiber.App
	db  *gorm.DB
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.New(io.Discard)
	validate := utils.NewValidator()
	tokens := service.NewRedisTokenStore(client, "test")

	userRepo := repository.NewUserRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	hub := service.NewEventHub(nil, "", logger)
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	backfill := service.NewAbsenteeBackfill(userRepo, attendanceRepo, logger)
	auth := service.NewAuthService(userRepo, tokens, validate, service.AuthConfig{Secret: testSecret, TTL: time.Hour}, logger)
	users := service.NewUserService(userRepo, activity, validate, logger)
	summaries := service.NewSummaryCache(client, time.Minute, logger)
	sessions := service.NewSessionService(repository.NewSessionRepository(db), backfill, activity, hub, summaries, validate, logger)
	attendance := service.NewCachedAttendanceService(
		service.NewAttendanceService(attendanceRepo, userRepo, sessions, backfill, activity, hub, validate, logger),
		summaries,
	)

	cfg := config.Config{AppName: "Attendance Test", AppEnv: "test", JWTSecret: testSecret, CookieName: testCookieName}
	app := fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler(logger)})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(auth, handler.CookieOptions{Name: testCookieName}, logger),
		UserHandler:       handler.NewUserHandler(users, logger),
		SessionHandler:    handler.NewSessionHandler(sessions, attendance, hub, 128, logger),
		AttendanceHandler: handler.NewAttendanceHandler(attendance, logger),
		ActivityHandler:   handler.NewActivityHandler(activity, logger),
		JWTMiddleware: middleware.JWTProtected(middleware.JWTConfig{
			Secret:      testSecret,
			CookieName:  testCookieName,
			Revocations: tokens,
			Accounts:    userRepo,
		}),
	})

	return &testApp{app: app, db: db}
}

func (a *testApp) seedUser(t *testing.T, username, role string) models.User {
	t.Helper()
	hash, err := utils.HashPassword(testPassword)
	require.NoError(t, err)
	user := models.User{
		Username:     username,
		PasswordHash: hash,
		Name:         username,
		Role:         role,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, a.db.Create(&user).Error)
	return user
}

// login authenticates through the API and returns the issued session cookie.
func (a *testApp) login(t *testing.T, username string) *http.Cookie {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/api/login", map[string]string{
		"username": username,
		"password": testPassword,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, cookie := range resp.Cookies() {
		if cookie.Name == testCookieName {
			return cookie
		}
	}
	t.Fatalf("login for %s did not set a session cookie", username)
	return nil
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) apiEnvelope {
	t.Helper()
	defer resp.Body.Close()
	var envelope apiEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope
}

func decodeData(t *testing.T, resp *http.Response, target interface{}) apiEnvelope {
	t.Helper()
	envelope := decodeEnvelope(t, resp)
	require.NoError(t, json.Unmarshal(envelope.Data, target))
	return envelope
}

func sessionPayload(name string) map[string]interface{} {
	now := time.Now().UTC()
	return map[string]interface{}{
		"name":     name,
		"date":     now.Format("2006-01-02"),
		"time":     now.Format("15:04"),
		"duration": 30,
	}
}

func itoa(id uint) string {
	return fmt.Sprintf("%d", id)
}
