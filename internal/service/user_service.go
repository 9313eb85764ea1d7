package service

import (
	"strings"
	"time"

	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/repository"
	"github.com/noteduco342/tourchat-backend/internal/validation"
)

type UserService struct {
	userRepo repository.UserRepositoryInterface
}

func NewUserService(userRepo repository.UserRepositoryInterface) *UserService {
	return &UserService{userRepo: userRepo}
}

type CompleteRegistrationInput struct {
	FirstName string        `json:"first_name" validate:"required,max=50"`
	LastName  string        `json:"last_name" validate:"required,max=50"`
	Email     string        `json:"email" validate:"omitempty,email"`
	BirthDate *time.Time    `json:"birth_date"`
	Gender    models.Gender `json:"gender" validate:"omitempty,oneof=male female other"`
}

func (s *UserService) GetProfile(userID uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("user_not_found", "User not found")
		}
		return nil, apperr.Unexpected("user_lookup_failed", err)
	}
	return user, nil
}

func (s *UserService) CompleteRegistration(userID uint, input CompleteRegistrationInput) (*models.User, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = validation.NormalizeEmail(input.Email)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if input.BirthDate != nil && input.BirthDate.After(time.Now()) {
		return nil, apperr.Validation("invalid_birth_date", "Birth date cannot be in the future")
	}

	user, err := s.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	user.FirstName = input.FirstName
	user.LastName = input.LastName
	if input.Email != "" {
		user.Email = &input.Email
	}
	if input.BirthDate != nil {
		user.BirthDate = input.BirthDate
	}
	if input.Gender != "" {
		gender := input.Gender
		user.Gender = &gender
	}
	user.IsRegistrationComplete = true

	if err := s.userRepo.Update(user); err != nil {
		return nil, apperr.Unexpected("user_update_failed", err)
	}
	return user, nil
}
