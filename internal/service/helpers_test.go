package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	db         *gorm.DB
	clock      *testClock
	users      repository.UserRepository
	records    repository.AttendanceRepository
	activity   ActivityService
	hub        *EventHub
	sessions   SessionService
	attendance AttendanceService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Session{}, &models.Attendance{}, &models.ActivityLog{}))

	clock := &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	validate := validator.New(validator.WithRequiredStructEnabled())

	users := repository.NewUserRepository(db)
	records := repository.NewAttendanceRepository(db)
	activity := NewActivityService(repository.NewActivityLogRepository(db), testLogger())
	hub := NewEventHub(nil, "", testLogger())

	closer := NewAbsenteeBackfill(users, records, testLogger())
	closer.(*absenteeBackfill).now = clock.Now

	sessions := NewSessionService(repository.NewSessionRepository(db), closer, activity, hub, nil, validate, testLogger())
	sessions.(*sessionService).now = clock.Now

	attendance := NewAttendanceService(records, users, sessions, closer, activity, hub, validate, testLogger())
	attendance.(*attendanceService).now = clock.Now

	return &testEnv{
		db:         db,
		clock:      clock,
		users:      users,
		records:    records,
		activity:   activity,
		hub:        hub,
		sessions:   sessions,
		attendance: attendance,
	}
}

func (e *testEnv) seedUser(t *testing.T, username, role string) models.User {
	t.Helper()
	hash, err := utils.HashPassword("password")
	require.NoError(t, err)

	user := models.User{
		Username:     username,
		PasswordHash: hash,
		Name:         username,
		Role:         role,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func adminActor(user models.User) ActivityActor {
	return ActivityActor{ID: user.ID, Role: user.Role}
}

func studentActor(user models.User) ActivityActor {
	return ActivityActor{ID: user.ID, Role: user.Role}
}
