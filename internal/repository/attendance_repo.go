package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

const absenteeBatchSize = 100

// AttendanceRepository persists attendance records.
type AttendanceRepository interface {
	GetBySessionAndUser(ctx context.Context, sessionID, userID uint) (models.Attendance, error)
	ListBySession(ctx context.Context, sessionID uint) ([]models.Attendance, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Attendance, error)
	CountByStatus(ctx context.Context, sessionID uint) (map[string]int64, error)
	CreateIfAbsent(ctx context.Context, record *models.Attendance) (bool, error)
	CreateAbsentees(ctx context.Context, records []models.Attendance) (int64, error)
}

type attendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository instantiates the repository.
func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) GetBySessionAndUser(ctx context.Context, sessionID, userID uint) (models.Attendance, error) {
	var record models.Attendance
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Where("user_id = ?", userID).
		First(&record).Error; err != nil {
		return models.Attendance{}, err
	}
	return record, nil
}

func (r *attendanceRepository) ListBySession(ctx context.Context, sessionID uint) ([]models.Attendance, error) {
	var records []models.Attendance
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("check_in_time ASC").
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *attendanceRepository) ListByUser(ctx context.Context, userID uint) ([]models.Attendance, error) {
	var records []models.Attendance
	if err := r.db.WithContext(ctx).
		Preload("Session").
		Where("user_id = ?", userID).
		Order("check_in_time DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *attendanceRepository) CountByStatus(ctx context.Context, sessionID uint) (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}

	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.Attendance{}).
		Select("status, COUNT(*) AS total").
		Where("session_id = ?", sessionID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, item := range rows {
		counts[item.Status] = item.Total
	}
	return counts, nil
}

// CreateIfAbsent inserts the record unless one already exists for the same
// (session_id, user_id) pair. It returns false when the unique index rejected the row.
func (r *attendanceRepository) CreateIfAbsent(ctx context.Context, record *models.Attendance) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CreateAbsentees inserts back-filled rows, skipping users that already have a record.
func (r *attendanceRepository) CreateAbsentees(ctx context.Context, records []models.Attendance) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&records, absenteeBatchSize)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
