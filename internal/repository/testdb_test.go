package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Session{}, &models.Attendance{}, &models.ActivityLog{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username, role string) models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		PasswordHash: "hash",
		Name:         username,
		Role:         role,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func newSession(name string, now time.Time) *models.Session {
	return &models.Session{
		Name:      name,
		Date:      now.Format("2006-01-02"),
		Time:      now.Format("15:04"),
		Duration:  5,
		ExpiresAt: now.Add(5 * time.Minute),
		CreatedBy: 1,
		CreatedAt: now,
	}
}
