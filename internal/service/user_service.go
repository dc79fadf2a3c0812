package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

// UserService manages accounts on behalf of administrators.
type UserService interface {
	List(ctx context.Context, req dto.UserListRequest) (dto.UserListResponse, error)
	Get(ctx context.Context, id uint) (dto.UserResponse, error)
	Create(ctx context.Context, req dto.UserCreateRequest, actor ActivityActor) (dto.UserResponse, error)
	Update(ctx context.Context, id uint, req dto.UserUpdateRequest, actor ActivityActor) (dto.UserResponse, error)
	Delete(ctx context.Context, id uint, actor ActivityActor) error
}

type userService struct {
	repo      repository.UserRepository
	activity  ActivityRecorder
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewUserService constructs the user management service.
func NewUserService(repo repository.UserRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		activity:  activity,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) List(ctx context.Context, req dto.UserListRequest) (dto.UserListResponse, error) {
	users, total, err := s.repo.List(ctx, repository.UserFilter{
		Search:   strings.TrimSpace(req.Search),
		Role:     strings.ToLower(strings.TrimSpace(req.Role)),
		Status:   strings.ToLower(strings.TrimSpace(req.Status)),
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return dto.UserListResponse{}, fmt.Errorf("list users: %w", err)
	}

	items := make([]dto.UserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, dto.NewUserResponse(user))
	}

	return dto.UserListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *userService) Get(ctx context.Context, id uint) (dto.UserResponse, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) Create(ctx context.Context, req dto.UserCreateRequest, actor ActivityActor) (dto.UserResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}
	if !s.validUsername(req.Username) {
		return dto.UserResponse{}, ErrInvalidUsername
	}

	name := sanitizeText(s.sanitizer, req.Name)
	if name == "" {
		return dto.UserResponse{}, ErrInvalidName
	}

	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return dto.UserResponse{}, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, fmt.Errorf("lookup username: %w", err)
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return dto.UserResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: hash,
		Name:         name,
		Role:         defaultString(req.Role, models.RoleStudent),
		Status:       defaultString(req.Status, models.UserStatusActive),
	}

	if err := s.repo.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrUsernameTaken
		}
		s.logger.Error().Err(err).Str("username", user.Username).Msg("failed to create user")
		return dto.UserResponse{}, fmt.Errorf("create user: %w", err)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionUserCreated,
		EntityType: models.EntityTypeUser,
		EntityID:   uintPtr(user.ID),
		Metadata:   map[string]interface{}{"username": user.Username, "role": user.Role},
	})

	return dto.NewUserResponse(user), nil
}

func (s *userService) Update(ctx context.Context, id uint, req dto.UserUpdateRequest, actor ActivityActor) (dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	current, err := s.getUser(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}

	updates := map[string]interface{}{}
	changed := make([]string, 0, 4)

	if req.Name != nil {
		name := sanitizeText(s.sanitizer, *req.Name)
		if name == "" {
			return dto.UserResponse{}, ErrInvalidName
		}
		updates["name"] = name
		changed = append(changed, "name")
	}
	if req.Role != nil && *req.Role != current.Role {
		if actor.ID == id {
			return dto.UserResponse{}, ErrForbidden
		}
		updates["role"] = *req.Role
		changed = append(changed, "role")
	}
	if req.Status != nil && *req.Status != current.Status {
		if actor.ID == id && *req.Status == models.UserStatusDisabled {
			return dto.UserResponse{}, ErrForbidden
		}
		updates["status"] = *req.Status
		changed = append(changed, "status")
	}
	if req.Password != nil {
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			return dto.UserResponse{}, fmt.Errorf("hash password: %w", err)
		}
		updates["password_hash"] = hash
		changed = append(changed, "password")
	}

	if len(updates) == 0 {
		return dto.NewUserResponse(current), nil
	}

	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		s.logger.Error().Err(err).Uint("user_id", id).Msg("failed to update user")
		return dto.UserResponse{}, fmt.Errorf("update user: %w", err)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionUserUpdated,
		EntityType: models.EntityTypeUser,
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"fields": changed},
	})

	return dto.NewUserResponse(updated), nil
}

func (s *userService) Delete(ctx context.Context, id uint, actor ActivityActor) error {
	if actor.ID == id {
		return ErrCannotDeleteSelf
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error().Err(err).Uint("user_id", id).Msg("failed to delete user")
		return fmt.Errorf("delete user: %w", err)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionUserDeleted,
		EntityType: models.EntityTypeUser,
		EntityID:   uintPtr(id),
	})
	return nil
}

func (s *userService) getUser(ctx context.Context, id uint) (models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *userService) validUsername(username string) bool {
	for _, r := range username {
		if unicode.IsSpace(r) {
			return false
		}
	}
	return sanitizeText(s.sanitizer, username) == username
}

func defaultString(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}
