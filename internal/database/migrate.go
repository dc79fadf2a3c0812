package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

// Migrate creates or updates the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Attendance{},
		&models.ActivityLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// AdminSeed describes the bootstrap administrator account.
type AdminSeed struct {
	Username string
	Password string
	Name     string
}

// SeedAdmin inserts the bootstrap administrator when no account with that username exists.
// It is a no-op when username or password is empty.
func SeedAdmin(ctx context.Context, db *gorm.DB, seed AdminSeed, logger zerolog.Logger) error {
	username := strings.TrimSpace(seed.Username)
	if username == "" || seed.Password == "" {
		return nil
	}

	var existing models.User
	err := db.WithContext(ctx).Where("LOWER(username) = ?", strings.ToLower(username)).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup bootstrap admin: %w", err)
	}

	hash, err := utils.HashPassword(seed.Password)
	if err != nil {
		return fmt.Errorf("hash bootstrap admin password: %w", err)
	}

	name := strings.TrimSpace(seed.Name)
	if name == "" {
		name = username
	}

	admin := models.User{
		Username:     username,
		PasswordHash: hash,
		Name:         name,
		Role:         models.RoleAdmin,
		Status:       models.UserStatusActive,
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	logger.Info().Str("username", username).Uint("user_id", admin.ID).Msg("bootstrap admin created")
	return nil
}
