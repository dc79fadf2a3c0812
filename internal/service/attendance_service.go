package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/observability"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/pkg/qrcode"
)

// SessionResolver is the subset of SessionService the attendance recorder depends on.
type SessionResolver interface {
	ResolveForCheckIn(ctx context.Context, id uint) (models.Session, error)
	Get(ctx context.Context, id uint) (dto.SessionResponse, error)
}

// AttendanceService records check-ins and answers attendance queries.
type AttendanceService interface {
	Mark(ctx context.Context, req dto.AttendanceMarkRequest, actor ActivityActor) (dto.AttendanceResponse, error)
	CloseOutAbsentees(ctx context.Context, sessionID uint) (int64, error)
	ListBySession(ctx context.Context, sessionID uint, viewer ActivityActor) ([]dto.AttendanceResponse, error)
	ListByUser(ctx context.Context, userID uint, viewer ActivityActor) ([]dto.AttendanceResponse, error)
	ListMine(ctx context.Context, viewer ActivityActor) ([]dto.AttendanceResponse, error)
	SessionSummary(ctx context.Context, sessionID uint) (dto.SessionSummaryResponse, error)
}

type attendanceService struct {
	records   repository.AttendanceRepository
	users     repository.UserRepository
	sessions  SessionResolver
	closer    AbsenteeCloser
	activity  ActivityRecorder
	events    EventPublisher
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAttendanceService constructs the attendance recorder.
func NewAttendanceService(
	records repository.AttendanceRepository,
	users repository.UserRepository,
	sessions SessionResolver,
	closer AbsenteeCloser,
	activity ActivityRecorder,
	events EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) AttendanceService {
	return &attendanceService{
		records:   records,
		users:     users,
		sessions:  sessions,
		closer:    closer,
		activity:  activity,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "attendance_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/qr-attendance-api/internal/service/attendance"),
		now:       time.Now,
	}
}

func (s *attendanceService) Mark(ctx context.Context, req dto.AttendanceMarkRequest, actor ActivityActor) (dto.AttendanceResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.mark", trace.WithAttributes(
		attribute.Int64("attendance.actor_id", int64(actor.ID)),
		attribute.Bool("attendance.manual", req.Manual),
	))
	defer span.End()

	if req.Manual && !actor.IsAdmin() {
		return dto.AttendanceResponse{}, ErrForbidden
	}

	if err := s.validator.Struct(req); err != nil {
		return dto.AttendanceResponse{}, err
	}

	source := "direct"
	sessionID := req.SessionID
	if raw := strings.TrimSpace(req.QRPayload); raw != "" {
		payload, err := qrcode.Decode(raw)
		if err != nil {
			return dto.AttendanceResponse{}, err
		}
		if sessionID != 0 && sessionID != payload.SessionID {
			return dto.AttendanceResponse{}, fmt.Errorf("%w: session mismatch", qrcode.ErrInvalidPayload)
		}
		sessionID = payload.SessionID
		source = "qr"
	}

	targetID := actor.ID
	var markedBy *uint
	if req.Manual {
		targetID = req.UserID
		markedBy = uintPtr(actor.ID)
		source = "manual"
	}
	span.SetAttributes(
		attribute.Int64("attendance.session_id", int64(sessionID)),
		attribute.Int64("attendance.user_id", int64(targetID)),
	)

	session, err := s.sessions.ResolveForCheckIn(ctx, sessionID)
	if err != nil {
		return dto.AttendanceResponse{}, err
	}

	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttendanceResponse{}, ErrUserNotFound
		}
		return dto.AttendanceResponse{}, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive() {
		return dto.AttendanceResponse{}, ErrUserInactive
	}

	if _, err := s.records.GetBySessionAndUser(ctx, session.ID, user.ID); err == nil {
		return dto.AttendanceResponse{}, ErrAttendanceExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AttendanceResponse{}, fmt.Errorf("check attendance: %w", err)
	}

	record := models.Attendance{
		SessionID:   session.ID,
		UserID:      user.ID,
		Name:        user.Name,
		Status:      models.AttendanceStatusPresent,
		CheckInTime: s.now().UTC(),
		Manual:      req.Manual,
		MarkedBy:    markedBy,
	}

	created, err := s.records.CreateIfAbsent(ctx, &record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert_failed")
		s.logger.Error().Err(err).
			Uint("session_id", session.ID).
			Uint("user_id", user.ID).
			Str("operation", "mark_attendance").
			Msg("failed to record attendance")
		return dto.AttendanceResponse{}, fmt.Errorf("record attendance: %w", err)
	}
	if !created {
		return dto.AttendanceResponse{}, ErrAttendanceExists
	}

	observability.AttendanceMarked().WithLabelValues(record.Status, source).Inc()
	s.logger.Info().
		Uint("session_id", session.ID).
		Uint("user_id", user.ID).
		Str("source", source).
		Msg("attendance recorded")

	response := dto.NewAttendanceResponse(record)

	if req.Manual {
		recordActivity(ctx, s.activity, s.logger, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     ActionAttendanceManual,
			EntityType: models.EntityTypeAttendance,
			EntityID:   uintPtr(record.ID),
			Metadata: map[string]interface{}{
				"session_id": session.ID,
				"user_id":    user.ID,
			},
		})
	}

	if s.events != nil {
		s.events.Publish(ctx, dto.AttendanceEvent{
			Type:       dto.EventAttendanceMarked,
			SessionID:  session.ID,
			Attendance: &response,
			OccurredAt: record.CheckInTime,
		})
	}

	return response, nil
}

func (s *attendanceService) CloseOutAbsentees(ctx context.Context, sessionID uint) (int64, error) {
	return s.closer.CloseOutAbsentees(ctx, sessionID)
}

func (s *attendanceService) ListBySession(ctx context.Context, sessionID uint, viewer ActivityActor) ([]dto.AttendanceResponse, error) {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	records, err := s.records.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session attendance: %w", err)
	}

	if !viewer.IsAdmin() {
		own := records[:0]
		for _, record := range records {
			if record.UserID == viewer.ID {
				own = append(own, record)
			}
		}
		records = own
	}

	return dto.NewAttendanceResponseSlice(records), nil
}

func (s *attendanceService) ListByUser(ctx context.Context, userID uint, viewer ActivityActor) ([]dto.AttendanceResponse, error) {
	if !viewer.IsAdmin() && viewer.ID != userID {
		return nil, ErrForbidden
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user attendance: %w", err)
	}

	return dto.NewAttendanceResponseSlice(records), nil
}

func (s *attendanceService) ListMine(ctx context.Context, viewer ActivityActor) ([]dto.AttendanceResponse, error) {
	return s.ListByUser(ctx, viewer.ID, viewer)
}

func (s *attendanceService) SessionSummary(ctx context.Context, sessionID uint) (dto.SessionSummaryResponse, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return dto.SessionSummaryResponse{}, err
	}

	counts, err := s.records.CountByStatus(ctx, sessionID)
	if err != nil {
		return dto.SessionSummaryResponse{}, fmt.Errorf("count attendance: %w", err)
	}

	summary := dto.SessionSummaryResponse{
		SessionID:   sessionID,
		Present:     counts[models.AttendanceStatusPresent],
		Absent:      counts[models.AttendanceStatusAbsent],
		Closed:      !session.IsActive,
		GeneratedAt: s.now().UTC(),
	}
	summary.Total = summary.Present + summary.Absent
	return summary, nil
}
