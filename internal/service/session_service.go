package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
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

// Expiry triggers, used as metric labels and audit metadata.
const (
	ExpireTriggerExplicit = "explicit"
	ExpireTriggerLazy     = "lazy"
)

// AbsenteeCloser back-fills absent records when a session closes.
type AbsenteeCloser interface {
	CloseOutAbsentees(ctx context.Context, sessionID uint) (int64, error)
}

// SessionService manages the attendance session lifecycle. Expiry is lazy: every read
// path closes a session that ran past expires_at before answering.
type SessionService interface {
	Create(ctx context.Context, req dto.SessionCreateRequest, actor ActivityActor) (dto.SessionResponse, error)
	GetActive(ctx context.Context) (dto.SessionResponse, error)
	Get(ctx context.Context, id uint) (dto.SessionResponse, error)
	ResolveForCheckIn(ctx context.Context, id uint) (models.Session, error)
	Expire(ctx context.Context, id uint, trigger string, actor ActivityActor) (dto.SessionExpireResponse, error)
	List(ctx context.Context, req dto.SessionListRequest) (dto.SessionListResponse, error)
	QRCode(ctx context.Context, id uint, size int) ([]byte, error)
}

type sessionService struct {
	repo      repository.SessionRepository
	closer    AbsenteeCloser
	activity  ActivityRecorder
	events    EventPublisher
	summaries SummaryInvalidator
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewSessionService constructs the session lifecycle service.
func NewSessionService(repo repository.SessionRepository, closer AbsenteeCloser, activity ActivityRecorder, events EventPublisher, summaries SummaryInvalidator, validate *validator.Validate, logger zerolog.Logger) SessionService {
	return &sessionService{
		repo:      repo,
		closer:    closer,
		activity:  activity,
		events:    events,
		summaries: summaries,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "session_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/qr-attendance-api/internal/service/session"),
		now:       time.Now,
	}
}

func (s *sessionService) Create(ctx context.Context, req dto.SessionCreateRequest, actor ActivityActor) (dto.SessionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "sessions.create")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.SessionResponse{}, err
	}

	name := sanitizeText(s.sanitizer, req.Name)
	if name == "" {
		return dto.SessionResponse{}, ErrInvalidName
	}

	now := s.now().UTC()
	session := models.Session{
		Name:      name,
		Date:      req.Date,
		Time:      req.Time,
		Duration:  req.Duration,
		QRCode:    req.QRCode,
		ExpiresAt: now.Add(time.Duration(req.Duration) * time.Minute),
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	deactivated, err := s.repo.Activate(ctx, &session)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetStatus(codes.Error, "single_active_conflict")
			return dto.SessionResponse{}, ErrSessionConflict
		}
		span.SetStatus(codes.Error, "activate_failed")
		s.logger.Error().Err(err).Str("operation", "create_session").Msg("failed to activate session")
		return dto.SessionResponse{}, fmt.Errorf("create session: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("session.id", int64(session.ID)),
		attribute.Int64("session.deactivated", deactivated),
		attribute.Int("session.duration_minutes", session.Duration),
	)
	s.logger.Info().
		Uint("session_id", session.ID).
		Int64("deactivated", deactivated).
		Time("expires_at", session.ExpiresAt).
		Msg("session activated")

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionSessionCreated,
		EntityType: models.EntityTypeSession,
		EntityID:   uintPtr(session.ID),
		Metadata: map[string]interface{}{
			"name":        session.Name,
			"duration":    session.Duration,
			"deactivated": deactivated,
		},
	})

	return s.toResponse(session), nil
}

func (s *sessionService) GetActive(ctx context.Context) (dto.SessionResponse, error) {
	session, err := s.repo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionResponse{}, ErrNoActiveSession
		}
		return dto.SessionResponse{}, fmt.Errorf("get active session: %w", err)
	}

	session, err = s.applyExpiry(ctx, session)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	if !session.IsActive {
		return dto.SessionResponse{}, ErrNoActiveSession
	}

	return s.toResponse(session), nil
}

func (s *sessionService) Get(ctx context.Context, id uint) (dto.SessionResponse, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	session, err = s.applyExpiry(ctx, session)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	return s.toResponse(session), nil
}

func (s *sessionService) ResolveForCheckIn(ctx context.Context, id uint) (models.Session, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return models.Session{}, err
	}

	session, err = s.applyExpiry(ctx, session)
	if err != nil {
		return models.Session{}, err
	}
	if !session.IsActive {
		return models.Session{}, ErrSessionExpired
	}

	return session, nil
}

func (s *sessionService) Expire(ctx context.Context, id uint, trigger string, actor ActivityActor) (dto.SessionExpireResponse, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return dto.SessionExpireResponse{}, err
	}

	closed, absentees, err := s.expire(ctx, session, trigger, actor)
	if err != nil {
		return dto.SessionExpireResponse{}, err
	}

	return dto.SessionExpireResponse{Session: s.toResponse(closed), Absentees: absentees}, nil
}

func (s *sessionService) List(ctx context.Context, req dto.SessionListRequest) (dto.SessionListResponse, error) {
	sessions, total, err := s.repo.List(ctx, repository.SessionFilter{
		Active:   req.Active,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return dto.SessionListResponse{}, fmt.Errorf("list sessions: %w", err)
	}

	items := make([]dto.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		session, err = s.applyExpiry(ctx, session)
		if err != nil {
			return dto.SessionListResponse{}, err
		}
		items = append(items, s.toResponse(session))
	}

	return dto.SessionListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *sessionService) QRCode(ctx context.Context, id uint, size int) ([]byte, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	image, err := qrcode.PNG(payloadFor(session), size)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return image, nil
}

func (s *sessionService) load(ctx context.Context, id uint) (models.Session, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// applyExpiry closes the session when it is still flagged active but past its expiry.
// It runs synchronously within the reading request.
func (s *sessionService) applyExpiry(ctx context.Context, session models.Session) (models.Session, error) {
	if !session.IsActive || !session.IsExpired(s.now()) {
		return session, nil
	}

	closed, _, err := s.expire(ctx, session, ExpireTriggerLazy, ActivityActor{})
	if err != nil {
		return models.Session{}, err
	}
	return closed, nil
}

// expire runs close-out before flipping the active flag. A session that is already
// inactive is left untouched, so its attendance set never changes after closing.
func (s *sessionService) expire(ctx context.Context, session models.Session, trigger string, actor ActivityActor) (models.Session, int64, error) {
	ctx, span := s.tracer.Start(ctx, "sessions.expire", trace.WithAttributes(
		attribute.Int64("session.id", int64(session.ID)),
		attribute.String("session.expire_trigger", trigger),
	))
	defer span.End()

	if !session.IsActive {
		span.SetAttributes(attribute.Bool("session.already_closed", true))
		if trigger == ExpireTriggerExplicit {
			s.recordExpired(ctx, session.ID, trigger, 0, actor)
		}
		return session, 0, nil
	}

	absentees, err := s.closer.CloseOutAbsentees(ctx, session.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "close_out_failed")
		s.logger.Error().Err(err).Uint("session_id", session.ID).Str("operation", "close_out").Msg("failed to back-fill absentees")
		return models.Session{}, 0, fmt.Errorf("close out session %d: %w", session.ID, err)
	}

	closedAt := s.now().UTC()
	flipped, err := s.repo.Deactivate(ctx, session.ID, closedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deactivate_failed")
		s.logger.Error().Err(err).Uint("session_id", session.ID).Str("operation", "deactivate").Msg("failed to deactivate session")
		return models.Session{}, 0, fmt.Errorf("deactivate session %d: %w", session.ID, err)
	}

	if flipped {
		session.IsActive = false
		session.ClosedAt = &closedAt
		observability.SessionsExpired().WithLabelValues(trigger).Inc()
	} else if session.IsActive {
		// closed concurrently by another request
		if refreshed, err := s.repo.GetByID(ctx, session.ID); err == nil {
			session = refreshed
		} else {
			session.IsActive = false
		}
	}

	span.SetAttributes(
		attribute.Bool("session.flipped", flipped),
		attribute.Int64("session.absentees", absentees),
	)
	s.logger.Info().
		Uint("session_id", session.ID).
		Str("trigger", trigger).
		Bool("flipped", flipped).
		Int64("absentees", absentees).
		Msg("session closed")

	if s.summaries != nil && (flipped || absentees > 0) {
		s.summaries.InvalidateSummary(ctx, session.ID)
	}

	if flipped || trigger == ExpireTriggerExplicit {
		s.recordExpired(ctx, session.ID, trigger, absentees, actor)
	}

	if flipped && s.events != nil {
		response := s.toResponse(session)
		s.events.Publish(ctx, dto.AttendanceEvent{
			Type:       dto.EventSessionClosed,
			SessionID:  session.ID,
			Session:    &response,
			Absentees:  absentees,
			OccurredAt: closedAt,
		})
	}

	return session, absentees, nil
}

// toResponse fills in the scannable payload when the client did not supply one.
func (s *sessionService) recordExpired(ctx context.Context, sessionID uint, trigger string, absentees int64, actor ActivityActor) {
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionSessionExpired,
		EntityType: models.EntityTypeSession,
		EntityID:   uintPtr(sessionID),
		Metadata: map[string]interface{}{
			"trigger":   trigger,
			"absentees": absentees,
		},
	})
}

func (s *sessionService) toResponse(session models.Session) dto.SessionResponse {
	response := dto.NewSessionResponse(session)
	if response.QRCode == "" {
		if encoded, err := qrcode.Encode(payloadFor(session)); err == nil {
			response.QRCode = encoded
		}
	}
	return response
}

func payloadFor(session models.Session) qrcode.Payload {
	return qrcode.Payload{
		SessionID: session.ID,
		Name:      session.Name,
		Date:      session.Date,
		Time:      session.Time,
		Duration:  session.Duration,
	}
}
