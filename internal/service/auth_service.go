package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

// AuthConfig carries token signing settings.
type AuthConfig struct {
	Secret string
	TTL    time.Duration
}

// AuthService authenticates users and manages their session tokens.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (dto.LoginResult, error)
	Logout(ctx context.Context, tokenID string, expiresAt time.Time) error
	Profile(ctx context.Context, userID uint) (dto.ProfileResponse, error)
}

type tokenClaims struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type authService struct {
	users     repository.UserRepository
	tokens    TokenStore
	validator *validator.Validate
	config    AuthConfig
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthService constructs the authentication service. tokens may be nil, in which
// case logout only clears the client cookie.
func NewAuthService(users repository.UserRepository, tokens TokenStore, validate *validator.Validate, cfg AuthConfig, logger zerolog.Logger) AuthService {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &authService{
		users:     users,
		tokens:    tokens,
		validator: validate,
		config:    cfg,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		now:       time.Now,
	}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (dto.LoginResult, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return dto.LoginResult{}, err
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LoginResult{}, ErrInvalidCredentials
		}
		return dto.LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		s.logger.Info().Str("username", req.Username).Msg("login rejected")
		return dto.LoginResult{}, ErrInvalidCredentials
	}

	if !user.IsActive() {
		return dto.LoginResult{}, ErrAccountDisabled
	}

	issuedAt := s.now().UTC()
	claims := tokenClaims{
		Role:     user.Role,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.TTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return dto.LoginResult{}, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("user logged in")

	return dto.LoginResult{
		Profile:   dto.NewProfileResponse(user),
		Token:     signed,
		ExpiresIn: int64(s.config.TTL.Seconds()),
	}, nil
}

func (s *authService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if s.tokens == nil || tokenID == "" {
		return nil
	}

	ttl := s.config.TTL
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(s.now())
	}

	if err := s.tokens.Revoke(ctx, tokenID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *authService) Profile(ctx context.Context, userID uint) (dto.ProfileResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProfileResponse{}, ErrUserNotFound
		}
		return dto.ProfileResponse{}, fmt.Errorf("get profile: %w", err)
	}
	return dto.NewProfileResponse(user), nil
}
