package services

import (
	"errors"

	"chikondi_backend/internal/auth"
	"chikondi_backend/internal/models"
	"chikondi_backend/internal/repositories"
	"chikondi_backend/pkg/apperrors"
)

type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=64"`
	Phone       string `json:"phone" validate:"omitempty,mw_phone"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthOutput struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthService interface {
	Register(input RegisterInput) (*AuthOutput, error)
	Login(input LoginInput) (*AuthOutput, error)
}

type AuthServiceImpl struct {
	users repositories.UserRepository
}

func NewAuthService(users repositories.UserRepository) AuthService {
	return &AuthServiceImpl{users: users}
}

func (s *AuthServiceImpl) Register(input RegisterInput) (*AuthOutput, error) {
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}

	if _, err := s.users.FindByEmail(input.Email); err == nil {
		return nil, apperrors.ErrConflict(nil, "auth", "Email is already registered")
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, apperrors.InternalError(err)
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	user := &models.User{
		Email:        input.Email,
		PasswordHash: hash,
		Role:         models.UserRoleMember,
		Status:       models.UserStatusActive,
	}
	if err := s.users.Create(user); err != nil {
		return nil, apperrors.InternalError(err)
	}

	profile := &models.Profile{
		UserID:      user.ID,
		DisplayName: input.DisplayName,
		Tier:        models.TierBasic,
	}
	if err := s.users.CreateProfile(profile); err != nil {
		return nil, apperrors.InternalError(err)
	}
	user.Profile = profile

	token, err := auth.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &AuthOutput{Token: token, User: user}, nil
}

func (s *AuthServiceImpl) Login(input LoginInput) (*AuthOutput, error) {
	user, err := s.users.FindByEmail(input.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.NewUnauthorizedError("Invalid email or password")
		}
		return nil, apperrors.InternalError(err)
	}

	if !auth.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperrors.NewUnauthorizedError("Invalid email or password")
	}
	if user.Status != models.UserStatusActive {
		return nil, apperrors.NewForbiddenError("Account is suspended")
	}

	token, err := auth.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &AuthOutput{Token: token, User: user}, nil
}
