package service

import (
	"strings"

	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/repository"
	"github.com/sirupsen/logrus"
)

type AdminService struct {
	userRepo  repository.UserRepositoryInterface
	tokenRepo repository.RefreshTokenRepositoryInterface
	logs      *LogService
	log       logrus.FieldLogger
}

func NewAdminService(
	userRepo repository.UserRepositoryInterface,
	tokenRepo repository.RefreshTokenRepositoryInterface,
	logs *LogService,
	log logrus.FieldLogger,
) *AdminService {
	return &AdminService{userRepo: userRepo, tokenRepo: tokenRepo, logs: logs, log: log}
}

type UserPage struct {
	Users []models.UserResponse `json:"users"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Pages int                   `json:"pages"`
	Limit int                   `json:"limit"`
}

func (s *AdminService) ListUsers(filter repository.UserFilter) (*UserPage, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, apperr.Validation("invalid_role", "Invalid role")
	}
	filter.Page = normalizePage(filter.Page)
	users, total, err := s.userRepo.List(filter)
	if err != nil {
		return nil, apperr.Unexpected("user_list_failed", err)
	}
	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToResponse())
	}
	return &UserPage{
		Users: out,
		Total: total,
		Page:  filter.Page.Page,
		Pages: pageCount(total, filter.Limit),
		Limit: filter.Limit,
	}, nil
}

// ListGuides is ListUsers restricted to the guide role.
func (s *AdminService) ListGuides(status models.UserStatus, page repository.Page) (*UserPage, error) {
	return s.ListUsers(repository.UserFilter{Page: page, Role: models.RoleGuide, Status: status})
}

// UpdateUserStatus activates or blocks a user. Blocking needs a reason and
// revokes the user's refresh tokens.
func (s *AdminService) UpdateUserStatus(actorID, userID uint, status models.UserStatus, reason string) (*models.User, error) {
	return s.updateStatus(actorID, userID, "", status, reason)
}

// UpdateGuideStatus is UpdateUserStatus for accounts holding the guide role.
func (s *AdminService) UpdateGuideStatus(actorID, userID uint, status models.UserStatus, reason string) (*models.User, error) {
	return s.updateStatus(actorID, userID, models.RoleGuide, status, reason)
}

func (s *AdminService) updateStatus(actorID, userID uint, requireRole models.Role, status models.UserStatus, reason string) (*models.User, error) {
	if status != models.UserActive && status != models.UserBlocked {
		return nil, apperr.Validation("invalid_status", "Status must be active or blocked")
	}
	reason = strings.TrimSpace(reason)
	if status == models.UserBlocked && reason == "" {
		return nil, apperr.Validation("reason_required", "Reason is required when blocking a user")
	}
	if status == models.UserActive {
		reason = ""
	}
	if actorID == userID {
		return nil, apperr.Validation("self_update", "You cannot change your own account")
	}

	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}
	if requireRole != "" && user.Role != requireRole {
		return nil, apperr.NotFound("guide_not_found", "Guide not found")
	}

	if _, err := s.userRepo.UpdateStatus(userID, status, reason); err != nil {
		return nil, apperr.Unexpected("user_update_failed", err)
	}
	if status == models.UserBlocked {
		if err := s.tokenRepo.RevokeAllForUser(userID); err != nil {
			s.log.WithError(err).WithField("user_id", userID).Error("failed to revoke tokens of blocked user")
		}
	}

	s.logs.Record(LogEntry{
		Level:    models.LevelInfo,
		Category: models.CategoryAuth,
		Message:  "user status changed to " + string(status),
		Details:  map[string]interface{}{"target_id": userID, "reason": reason},
		UserID:   &actorID,
	})

	user.Status = status
	user.BlockReason = reason
	return user, nil
}

func (s *AdminService) UpdateUserRole(actorID, userID uint, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, apperr.Validation("invalid_role", "Role must be user, guide or admin")
	}
	if actorID == userID {
		return nil, apperr.Validation("self_update", "You cannot change your own account")
	}
	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.UpdateRole(userID, role); err != nil {
		return nil, apperr.Unexpected("user_update_failed", err)
	}

	s.logs.Record(LogEntry{
		Level:    models.LevelInfo,
		Category: models.CategoryAuth,
		Message:  "user role changed to " + string(role),
		Details:  map[string]interface{}{"target_id": userID, "previous_role": string(user.Role)},
		UserID:   &actorID,
	})

	user.Role = role
	return user, nil
}

func (s *AdminService) findUser(userID uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("user_not_found", "User not found")
		}
		return nil, apperr.Unexpected("user_lookup_failed", err)
	}
	return user, nil
}
