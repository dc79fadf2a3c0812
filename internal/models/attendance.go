package models

import "time"

const (
	// AttendanceStatusPresent is recorded by a scan or by an admin on a student's behalf.
	AttendanceStatusPresent = "present"
	// AttendanceStatusAbsent is back-filled when a session is closed.
	AttendanceStatusAbsent = "absent"
)

// Attendance is the single outcome of one user for one session.
type Attendance struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SessionID   uint      `gorm:"not null;uniqueIndex:idx_attendance_session_user" json:"session_id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_attendance_session_user;index" json:"user_id"`
	Name        string    `gorm:"size:255" json:"name"`
	Status      string    `gorm:"size:16;not null" json:"status"`
	CheckInTime time.Time `gorm:"not null" json:"check_in_time"`
	Manual      bool      `gorm:"not null;default:false" json:"manual"`
	MarkedBy    *uint     `json:"marked_by"`
	CreatedAt   time.Time `json:"created_at"`
	Session     *Session  `gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"session,omitempty"`
}

// IsPresent reports whether the record counts as a check-in.
func (a Attendance) IsPresent() bool {
	return a.Status == AttendanceStatusPresent
}
