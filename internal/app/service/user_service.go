package service

import (
	"context"
	"fmt"
	"log/slog"

	"smarttrack/internal/common"
	"smarttrack/internal/domain/model"
	"smarttrack/internal/domain/repository"
)

type UserService struct {
	userRepo repository.UserRepository
	log      *slog.Logger
}

func NewUserService(userRepo repository.UserRepository, log *slog.Logger) *UserService {
	return &UserService{userRepo: userRepo, log: log}
}

type ProfileResponse struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Role   string   `json:"role"`
	Skills []string `json:"skills"`
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*ProfileResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("UserService.GetProfile: %w", err)
	}
	return profileFromUser(user), nil
}

// UpdateProfileRequest uses pointer fields so omitted fields are left
// untouched while explicitly provided values, including empty ones, stick.
type UpdateProfileRequest struct {
	Name   *string   `json:"name,omitempty"`
	Email  *string   `json:"email,omitempty" validate:"omitempty,email"`
	Skills *[]string `json:"skills,omitempty"`
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*ProfileResponse, error) {
	const op = "UserService.UpdateProfile"

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, fmt.Errorf("name cannot be empty: %w", common.ErrValidation)
		}
		user.Name = *req.Name
	}
	if req.Email != nil {
		if *req.Email == "" {
			return nil, fmt.Errorf("email cannot be empty: %w", common.ErrValidation)
		}
		user.Email = *req.Email
	}
	if req.Skills != nil {
		user.Skills = *req.Skills
		if user.Skills == nil {
			user.Skills = []string{}
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("profile updated", slog.String("op", op), slog.String("user_id", userID))
	return profileFromUser(user), nil
}

func profileFromUser(user *model.User) *ProfileResponse {
	skills := user.Skills
	if skills == nil {
		skills = []string{}
	}
	return &ProfileResponse{
		ID:     user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
		Skills: skills,
	}
}
