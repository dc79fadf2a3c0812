package dto

import (
	"time"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

// AttendanceMarkRequest is submitted by a scanning client or by an admin marking manually.
type AttendanceMarkRequest struct {
	SessionID uint   `json:"sessionId" validate:"required_without=QRPayload"`
	QRPayload string `json:"qrPayload" validate:"omitempty,max=4096"`
	Manual    bool   `json:"manual"`
	UserID    uint   `json:"userId" validate:"required_if=Manual true"`
}

// AttendanceResponse serializes an attendance record, optionally enriched with session metadata.
type AttendanceResponse struct {
	ID          uint      `json:"id"`
	SessionID   uint      `json:"sessionId"`
	UserID      uint      `json:"userId"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	CheckInTime time.Time `json:"checkInTime"`
	Manual      bool      `json:"manual"`
	MarkedBy    *uint     `json:"markedBy,omitempty"`
	SessionName string    `json:"sessionName,omitempty"`
	SessionDate string    `json:"sessionDate,omitempty"`
	SessionTime string    `json:"sessionTime,omitempty"`
}

// NewAttendanceResponse converts a model into a DTO.
func NewAttendanceResponse(model models.Attendance) AttendanceResponse {
	response := AttendanceResponse{
		ID:          model.ID,
		SessionID:   model.SessionID,
		UserID:      model.UserID,
		Name:        model.Name,
		Status:      model.Status,
		CheckInTime: model.CheckInTime,
		Manual:      model.Manual,
		MarkedBy:    model.MarkedBy,
	}
	if model.Session != nil {
		response.SessionName = model.Session.Name
		response.SessionDate = model.Session.Date
		response.SessionTime = model.Session.Time
	}
	return response
}

// NewAttendanceResponseSlice converts a slice of models into DTOs.
func NewAttendanceResponseSlice(records []models.Attendance) []AttendanceResponse {
	responses := make([]AttendanceResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewAttendanceResponse(record))
	}
	return responses
}
