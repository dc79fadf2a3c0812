package models

import (
	"time"

	"gorm.io/datatypes"
)

// Entity types referenced by audit entries.
const (
	EntityTypeSession    = "session"
	EntityTypeAttendance = "attendance"
	EntityTypeUser       = "user"
)

// ActivityLog is an append-only audit entry for administrative actions such as
// opening or closing a session, manual marking and account changes.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole  string            `gorm:"size:16;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:32;not null;index:idx_activity_entity" json:"entity_type"`
	EntityID   *uint             `gorm:"index:idx_activity_entity" json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}
