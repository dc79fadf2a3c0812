package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

// SessionFilter narrows session listings.
type SessionFilter struct {
	Active   *bool
	Page     int
	PageSize int
}

// SessionRepository persists attendance sessions.
type SessionRepository interface {
	Activate(ctx context.Context, session *models.Session) (int64, error)
	GetByID(ctx context.Context, id uint) (models.Session, error)
	GetActive(ctx context.Context) (models.Session, error)
	List(ctx context.Context, filter SessionFilter) ([]models.Session, int64, error)
	Deactivate(ctx context.Context, id uint, closedAt time.Time) (bool, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository instantiates a GORM-backed repository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Activate closes every active session and inserts the given one as active inside a
// single transaction. It returns the number of sessions that were deactivated.
func (r *sessionRepository) Activate(ctx context.Context, session *models.Session) (int64, error) {
	var deactivated int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		closedAt := session.CreatedAt
		if closedAt.IsZero() {
			closedAt = time.Now()
		}

		update := tx.Model(&models.Session{}).
			Where("is_active = ?", true).
			Updates(map[string]interface{}{
				"is_active": false,
				"closed_at": closedAt,
			})
		if update.Error != nil {
			return update.Error
		}
		deactivated = update.RowsAffected

		session.IsActive = true
		return tx.Create(session).Error
	})
	if err != nil {
		return 0, err
	}

	return deactivated, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id uint) (models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return models.Session{}, err
	}
	return session, nil
}

func (r *sessionRepository) GetActive(ctx context.Context) (models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		First(&session).Error; err != nil {
		return models.Session{}, err
	}
	return session, nil
}

func (r *sessionRepository) List(ctx context.Context, filter SessionFilter) ([]models.Session, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Session{})
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}

	var sessions []models.Session
	total, err := countAndFind(query, "created_at DESC, id DESC", filter.Page, filter.PageSize, &sessions)
	if err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

// Deactivate flips is_active with a conditional update; it reports whether this call
// performed the transition.
func (r *sessionRepository) Deactivate(ctx context.Context, id uint, closedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", id).
		Where("is_active = ?", true).
		Updates(map[string]interface{}{
			"is_active": false,
			"closed_at": closedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
