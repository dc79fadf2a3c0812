package dto

import (
	"time"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

// SessionCreateRequest describes the payload for opening an attendance window.
type SessionCreateRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=120"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string `json:"time" validate:"required,datetime=15:04"`
	Duration int    `json:"duration" validate:"required,min=1,max=180"`
	QRCode   string `json:"qrCode" validate:"omitempty,max=4096"`
}

// SessionListRequest narrows session listings.
type SessionListRequest struct {
	Page     int
	PageSize int
	Active   *bool
}

// SessionResponse is the serialized representation of a session.
type SessionResponse struct {
	ID        uint       `json:"id"`
	Name      string     `json:"name"`
	Date      string     `json:"date"`
	Time      string     `json:"time"`
	Duration  int        `json:"duration"`
	QRCode    string     `json:"qrCode"`
	ExpiresAt time.Time  `json:"expiresAt"`
	IsActive  bool       `json:"isActive"`
	CreatedBy uint       `json:"createdBy"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// SessionListResponse wraps a paginated session listing.
type SessionListResponse struct {
	Items      []SessionResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// SessionExpireResponse reports the outcome of a close-out.
type SessionExpireResponse struct {
	Session   SessionResponse `json:"session"`
	Absentees int64           `json:"absentees"`
}

// SessionSummaryResponse aggregates attendance outcomes for one session.
type SessionSummaryResponse struct {
	SessionID   uint      `json:"sessionId"`
	Present     int64     `json:"present"`
	Absent      int64     `json:"absent"`
	Total       int64     `json:"total"`
	Closed      bool      `json:"closed"`
	GeneratedAt time.Time `json:"generatedAt"`
	CacheHit    bool      `json:"cacheHit"`
}

// NewSessionResponse converts a model into a DTO.
func NewSessionResponse(model models.Session) SessionResponse {
	return SessionResponse{
		ID:        model.ID,
		Name:      model.Name,
		Date:      model.Date,
		Time:      model.Time,
		Duration:  model.Duration,
		QRCode:    model.QRCode,
		ExpiresAt: model.ExpiresAt,
		IsActive:  model.IsActive,
		CreatedBy: model.CreatedBy,
		ClosedAt:  model.ClosedAt,
		CreatedAt: model.CreatedAt,
	}
}

// NewSessionResponseSlice converts a slice of models into DTOs.
func NewSessionResponseSlice(sessions []models.Session) []SessionResponse {
	responses := make([]SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		responses = append(responses, NewSessionResponse(session))
	}
	return responses
}
