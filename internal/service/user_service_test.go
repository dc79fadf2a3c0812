package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

func newUserFixture(t *testing.T) (*testEnv, UserService) {
	t.Helper()
	env := newTestEnv(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	return env, NewUserService(env.users, env.activity, validate, testLogger())
}

func strPtr(v string) *string {
	return &v
}

func TestUserServiceCreateDefaultsAndDuplicates(t *testing.T) {
	env, svc := newUserFixture(t)
	admin := env.seedUser(t, "admin", models.RoleAdmin)
	ctx := context.Background()

	created, err := svc.Create(ctx, dto.UserCreateRequest{Username: "dana", Password: "secret1", Name: "Dana O'Neil"}, adminActor(admin))
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, created.Role)
	require.Equal(t, models.UserStatusActive, created.Status)
	require.Equal(t, "Dana O'Neil", created.Name)

	stored, err := env.users.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, utils.CheckPassword(stored.PasswordHash, "secret1"))

	_, err = svc.Create(ctx, dto.UserCreateRequest{Username: "DANA", Password: "secret1", Name: "Other"}, adminActor(admin))
	require.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.Create(ctx, dto.UserCreateRequest{Username: "has space", Password: "secret1", Name: "Spacey"}, adminActor(admin))
	require.ErrorIs(t, err, ErrInvalidUsername)

	_, err = svc.Create(ctx, dto.UserCreateRequest{Username: "x", Password: "1", Name: ""}, adminActor(admin))
	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))

	logs, err := env.activity.List(ctx, dto.ActivityListRequest{Action: ActionUserCreated})
	require.NoError(t, err)
	require.Len(t, logs.Items, 1)
}

func TestUserServiceUpdate(t *testing.T) {
	env, svc := newUserFixture(t)
	admin := env.seedUser(t, "admin", models.RoleAdmin)
	student := env.seedUser(t, "erin", models.RoleStudent)
	ctx := context.Background()

	updated, err := svc.Update(ctx, student.ID, dto.UserUpdateRequest{
		Name:     strPtr("Erin <i>Smith</i>"),
		Status:   strPtr(models.UserStatusDisabled),
		Password: strPtr("newpass"),
	}, adminActor(admin))
	require.NoError(t, err)
	require.Equal(t, "Erin Smith", updated.Name)
	require.Equal(t, models.UserStatusDisabled, updated.Status)

	stored, err := env.users.GetByID(ctx, student.ID)
	require.NoError(t, err)
	require.True(t, utils.CheckPassword(stored.PasswordHash, "newpass"))

	_, err = svc.Update(ctx, admin.ID, dto.UserUpdateRequest{Role: strPtr(models.RoleStudent)}, adminActor(admin))
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Update(ctx, 999, dto.UserUpdateRequest{Name: strPtr("Ghost")}, adminActor(admin))
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceDelete(t *testing.T) {
	env, svc := newUserFixture(t)
	admin := env.seedUser(t, "admin", models.RoleAdmin)
	student := env.seedUser(t, "frank", models.RoleStudent)
	ctx := context.Background()

	require.ErrorIs(t, svc.Delete(ctx, admin.ID, adminActor(admin)), ErrCannotDeleteSelf)
	require.NoError(t, svc.Delete(ctx, student.ID, adminActor(admin)))
	require.ErrorIs(t, svc.Delete(ctx, student.ID, adminActor(admin)), ErrUserNotFound)

	list, err := svc.List(ctx, dto.UserListRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, int64(1), list.Pagination.TotalItems)
}
