package models

import "time"

// Session is a bounded attendance window. At most one session is active at a time;
// the partial unique index on is_active rejects a second active row.
type Session struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"size:120;not null" json:"name"`
	Date      string     `gorm:"size:10;not null" json:"date"`
	Time      string     `gorm:"size:5;not null" json:"time"`
	Duration  int        `gorm:"not null" json:"duration"`
	QRCode    string     `gorm:"type:text" json:"qr_code"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	IsActive  bool       `gorm:"not null;default:false;uniqueIndex:idx_sessions_single_active,where:is_active = true" json:"is_active"`
	CreatedBy uint       `json:"created_by"`
	ClosedAt  *time.Time `json:"closed_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsExpired returns true once the wall-clock deadline has passed.
func (s Session) IsExpired(reference time.Time) bool {
	return reference.After(s.ExpiresAt)
}

// AcceptsCheckIns reports whether a scan at the reference time may be recorded.
func (s Session) AcceptsCheckIns(reference time.Time) bool {
	return s.IsActive && !s.IsExpired(reference)
}
