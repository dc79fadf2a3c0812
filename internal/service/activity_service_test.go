package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
)

type memoryActivityRepo struct {
	entries []models.ActivityLog
}

func (m *memoryActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(ctx context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	return append([]models.ActivityLog(nil), m.entries...), int64(len(m.entries)), nil
}

func TestActivityServiceRecordMasksSecrets(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	entry, err := svc.Record(context.Background(), ActivityEntry{
		ActorID:    1,
		ActorRole:  "Admin",
		Action:     "User.Updated",
		EntityType: "user",
		EntityID:   uintPtr(5),
		Metadata: map[string]interface{}{
			"password":     "hunter2",
			"access_token": "abc",
			"field":        "status",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "***", entry.Metadata["password"])
	require.Equal(t, "***", entry.Metadata["access_token"])
	require.Equal(t, "status", entry.Metadata["field"])
	require.Equal(t, "admin", entry.ActorRole)
	require.Equal(t, "user.updated", entry.Action)
}

func TestActivityServiceRecordRequiresAction(t *testing.T) {
	svc := NewActivityService(&memoryActivityRepo{}, testLogger())

	_, err := svc.Record(context.Background(), ActivityEntry{EntityType: "session"})
	require.Error(t, err)

	entry, err := svc.Record(context.Background(), ActivityEntry{Action: "session.expired", EntityType: "session"})
	require.NoError(t, err)
	require.Equal(t, "system", entry.ActorRole)
}
