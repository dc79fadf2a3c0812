package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

func TestAttendanceRepositoryCreateIfAbsentRejectsDuplicate(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	student := seedUser(t, db, "alice", models.RoleStudent)
	session := newSession("Lecture", now)
	require.NoError(t, db.Create(session).Error)

	record := models.Attendance{SessionID: session.ID, UserID: student.ID, Name: student.Name, Status: models.AttendanceStatusPresent, CheckInTime: now}
	created, err := repo.CreateIfAbsent(ctx, &record)
	require.NoError(t, err)
	require.True(t, created)
	require.NotZero(t, record.ID)

	duplicate := models.Attendance{SessionID: session.ID, UserID: student.ID, Name: student.Name, Status: models.AttendanceStatusPresent, CheckInTime: now}
	created, err = repo.CreateIfAbsent(ctx, &duplicate)
	require.NoError(t, err)
	require.False(t, created)

	stored, err := repo.GetBySessionAndUser(ctx, session.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, record.ID, stored.ID)
}

func TestAttendanceRepositoryCreateAbsenteesSkipsExisting(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	alice := seedUser(t, db, "alice", models.RoleStudent)
	bob := seedUser(t, db, "bob", models.RoleStudent)
	carol := seedUser(t, db, "carol", models.RoleStudent)
	session := newSession("Lecture", now)
	require.NoError(t, db.Create(session).Error)

	present := models.Attendance{SessionID: session.ID, UserID: alice.ID, Name: alice.Name, Status: models.AttendanceStatusPresent, CheckInTime: now}
	_, err := repo.CreateIfAbsent(ctx, &present)
	require.NoError(t, err)

	absentees := []models.Attendance{
		{SessionID: session.ID, UserID: alice.ID, Name: alice.Name, Status: models.AttendanceStatusAbsent, CheckInTime: now},
		{SessionID: session.ID, UserID: bob.ID, Name: bob.Name, Status: models.AttendanceStatusAbsent, CheckInTime: now},
		{SessionID: session.ID, UserID: carol.ID, Name: carol.Name, Status: models.AttendanceStatusAbsent, CheckInTime: now},
	}
	inserted, err := repo.CreateAbsentees(ctx, absentees)
	require.NoError(t, err)
	require.Equal(t, int64(2), inserted)

	counts, err := repo.CountByStatus(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[models.AttendanceStatusPresent])
	require.Equal(t, int64(2), counts[models.AttendanceStatusAbsent])

	inserted, err = repo.CreateAbsentees(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, inserted)
}

func TestAttendanceRepositoryListByUserPreloadsSession(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	student := seedUser(t, db, "dave", models.RoleStudent)
	older := newSession("Older", now.Add(-time.Hour))
	newer := newSession("Newer", now)
	require.NoError(t, db.Create(older).Error)
	require.NoError(t, db.Create(newer).Error)

	for _, item := range []struct {
		session *models.Session
		at      time.Time
	}{{older, now.Add(-time.Hour)}, {newer, now}} {
		record := models.Attendance{SessionID: item.session.ID, UserID: student.ID, Name: student.Name, Status: models.AttendanceStatusPresent, CheckInTime: item.at}
		_, err := repo.CreateIfAbsent(ctx, &record)
		require.NoError(t, err)
	}

	records, err := repo.ListByUser(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[0].Session)
	require.Equal(t, "Newer", records[0].Session.Name)

	bySession, err := repo.ListBySession(ctx, older.ID)
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	require.Equal(t, student.ID, bySession[0].UserID)
}
