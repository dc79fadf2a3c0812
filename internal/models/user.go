package models

import "time"

const (
	// RoleAdmin grants session management and user administration.
	RoleAdmin = "admin"
	// RoleStudent is the default role; students check in to sessions.
	RoleStudent = "student"
)

const (
	// UserStatusActive marks an account that may log in.
	UserStatusActive = "active"
	// UserStatusDisabled marks an account that has been locked by an administrator.
	UserStatusDisabled = "disabled"
)

// User is an identity that can authenticate against the API.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Role         string    `gorm:"size:16;not null;default:student;index" json:"role"`
	Status       string    `gorm:"size:16;not null;default:active" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsActive reports whether the account may log in and check in.
func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}
