package dto

import "time"

// Event types emitted on the live feed and the message bus.
const (
	EventAttendanceMarked = "attendance.marked"
	EventSessionClosed    = "session.closed"
)

// AttendanceEvent is pushed to live feed subscribers and published on NATS.
type AttendanceEvent struct {
	Type       string              `json:"type"`
	SessionID  uint                `json:"sessionId"`
	Attendance *AttendanceResponse `json:"attendance,omitempty"`
	Session    *SessionResponse    `json:"session,omitempty"`
	Absentees  int64               `json:"absentees,omitempty"`
	OccurredAt time.Time           `json:"occurredAt"`
}
