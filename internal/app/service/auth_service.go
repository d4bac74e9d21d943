package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"smarttrack/internal/common"
	"smarttrack/internal/common/logger"
	"smarttrack/internal/common/security"
	"smarttrack/internal/domain/model"
	"smarttrack/internal/domain/repository"

	"github.com/google/uuid"
)

// WelcomeNotifier enqueues the post-registration welcome email. Delivery is
// best-effort: enqueue failures must never fail the registration itself.
type WelcomeNotifier interface {
	EnqueueWelcome(ctx context.Context, email, name string) error
}

type AuthService struct {
	userRepo repository.UserRepository
	notifier WelcomeNotifier
	log      *slog.Logger
}

func NewAuthService(userRepo repository.UserRepository, notifier WelcomeNotifier, log *slog.Logger) *AuthService {
	return &AuthService{userRepo: userRepo, notifier: notifier, log: log}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse mirrors the public profile shape plus the access token.
// The refresh token never appears in a body; the handler moves it into an
// httpOnly cookie.
type AuthResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Token        string `json:"token"`
	RefreshToken string `json:"-"`
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	const op = "AuthService.Register"
	log := s.log.With(slog.String("op", op))

	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("name, email and password are required: %w", common.ErrValidation)
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("password must be at least 6 characters: %w", common.ErrValidation)
	}

	if _, err := s.userRepo.FindByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("user already exists: %w", common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Email:          req.Email,
		HashedPassword: hashedPassword,
		Role:           model.RoleStudent,
		Skills:         []string{},
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Repo returns common.ErrConflict on a concurrent duplicate
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Welcome email is fire-and-forget: a broken queue must not block signup.
	if err := s.notifier.EnqueueWelcome(ctx, user.Email, user.Name); err != nil {
		log.Error("failed to enqueue welcome email", logger.Err(err))
	}

	log.Info("user registered", slog.String("user_id", user.ID))
	return resp, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	const op = "AuthService.Login"
	log := s.log.With(slog.String("op", op))

	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("email and password are required: %w", common.ErrValidation)
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// Same error as a bad password so callers cannot enumerate accounts
			return nil, common.ErrUnauthorized
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.ErrUnauthorized
	}

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.String("user_id", user.ID))
	return resp, nil
}

// issueTokens mints a fresh access+refresh pair and rotates the stored
// refresh token, capping each user to a single long-lived session.
func (s *AuthService) issueTokens(ctx context.Context, user *model.User) (*AuthResponse, error) {
	accessToken, err := security.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := security.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	if err := s.userRepo.UpdateRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return &AuthResponse{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Role:         user.Role,
		Token:        accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh redeems a stored refresh token for a new access token. The stored
// token is left in place: this is a capability check, not a rotation.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	const op = "AuthService.Refresh"
	log := s.log.With(slog.String("op", op))

	if refreshToken == "" {
		return "", common.ErrUnauthorized
	}

	user, err := s.userRepo.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrUnauthorized
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	claims, err := security.ParseToken(refreshToken)
	if err != nil {
		log.Warn("stored refresh token failed verification", slog.String("user_id", user.ID))
		return "", common.ErrForbidden
	}
	subject, err := security.GetUserIDFromClaims(claims)
	if err != nil || subject != user.ID {
		log.Warn("refresh token subject mismatch", slog.String("user_id", user.ID))
		return "", common.ErrForbidden
	}

	accessToken, err := security.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate access token: %w", op, err)
	}
	return accessToken, nil
}

// Logout clears the stored refresh token so it can never again be redeemed.
// Unknown tokens are treated as an already-logged-out success.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	const op = "AuthService.Logout"
	log := s.log.With(slog.String("op", op))

	if refreshToken == "" {
		return nil
	}

	user, err := s.userRepo.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.userRepo.UpdateRefreshToken(ctx, user.ID, ""); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged out", slog.String("user_id", user.ID))
	return nil
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	const op = "AuthService.ChangePassword"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	if req.CurrentPassword == "" || req.NewPassword == "" {
		return fmt.Errorf("current and new password are required: %w", common.ErrValidation)
	}
	if len(req.NewPassword) < 6 {
		return fmt.Errorf("new password must be at least 6 characters: %w", common.ErrValidation)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !security.CheckPasswordHash(req.CurrentPassword, user.HashedPassword) {
		return fmt.Errorf("current password is incorrect: %w", common.ErrUnauthorized)
	}

	hashedPassword, err := security.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("%s: failed to hash password: %w", op, err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hashedPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password changed")
	return nil
}
