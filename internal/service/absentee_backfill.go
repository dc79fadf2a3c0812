package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/observability"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
)

type absenteeBackfill struct {
	users   repository.UserRepository
	records repository.AttendanceRepository
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAbsenteeBackfill returns the close-out step that marks every student without a
// record for the session as absent.
func NewAbsenteeBackfill(users repository.UserRepository, records repository.AttendanceRepository, logger zerolog.Logger) AbsenteeCloser {
	return &absenteeBackfill{
		users:   users,
		records: records,
		logger:  logger.With().Str("component", "absentee_backfill").Logger(),
		now:     time.Now,
	}
}

func (b *absenteeBackfill) CloseOutAbsentees(ctx context.Context, sessionID uint) (int64, error) {
	students, err := b.users.ListByRole(ctx, models.RoleStudent)
	if err != nil {
		return 0, fmt.Errorf("list students: %w", err)
	}

	existing, err := b.records.ListBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("list session attendance: %w", err)
	}

	recorded := make(map[uint]struct{}, len(existing))
	for _, record := range existing {
		recorded[record.UserID] = struct{}{}
	}

	closedAt := b.now().UTC()
	absentees := make([]models.Attendance, 0, len(students))
	for _, student := range students {
		if _, ok := recorded[student.ID]; ok {
			continue
		}
		absentees = append(absentees, models.Attendance{
			SessionID:   sessionID,
			UserID:      student.ID,
			Name:        student.Name,
			Status:      models.AttendanceStatusAbsent,
			CheckInTime: closedAt,
		})
	}

	inserted, err := b.records.CreateAbsentees(ctx, absentees)
	if err != nil {
		return 0, fmt.Errorf("insert absentees: %w", err)
	}

	if inserted > 0 {
		observability.AbsenteesBackfilled().Add(float64(inserted))
		observability.AttendanceMarked().WithLabelValues(models.AttendanceStatusAbsent, "closeout").Add(float64(inserted))
	}

	b.logger.Debug().
		Uint("session_id", sessionID).
		Int("students", len(students)).
		Int("recorded", len(existing)).
		Int64("inserted", inserted).
		Msg("absentee back-fill complete")

	return inserted, nil
}
