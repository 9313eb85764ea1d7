package repository

import (
	"time"

	"github.com/noteduco342/tourchat-backend/internal/models"
)

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

type UserFilter struct {
	Page
	Role   models.Role
	Status models.UserStatus
}

type LogFilter struct {
	Page
	Level    models.LogLevel
	Category models.LogCategory
	Resolved *bool
}

// UserRepositoryInterface defines the contract for user repository operations
type UserRepositoryInterface interface {
	Create(user *models.User) error
	FindByPhone(phone string) (*models.User, error)
	FindByID(id uint) (*models.User, error)
	FindActiveIDs(ids []uint) ([]uint, error)
	Update(user *models.User) error
	UpdateStatus(id uint, status models.UserStatus, reason string) (bool, error)
	UpdateRole(id uint, role models.Role) (bool, error)
	List(filter UserFilter) ([]models.User, int64, error)
}

// RefreshTokenRepositoryInterface defines the contract for refresh token repository operations
type RefreshTokenRepositoryInterface interface {
	Create(token *models.RefreshToken) error
	FindValidByHash(tokenHash string) (*models.RefreshToken, error)
	RevokeByHash(tokenHash string) (bool, error)
	RevokeAllForUser(userID uint) error
}

// GroupRepositoryInterface defines the contract for tour group and membership operations
type GroupRepositoryInterface interface {
	Create(group *models.TourGroup) error
	FindByID(id uint) (*models.TourGroup, error)
	ListForUser(userID uint) ([]models.TourGroup, error)
	AcceptInvitation(invitationID, groupID, userID uint, at time.Time) error
	Leave(groupID, userID uint, at time.Time) (bool, error)
	Deactivate(groupID uint) (bool, error)
}

// InvitationRepositoryInterface defines the contract for group invitation operations
type InvitationRepositoryInterface interface {
	CreateBatch(invitations []models.GroupInvitation) error
	ListByGroup(groupID uint) ([]models.GroupInvitation, error)
	FindLatestPending(groupID, userID uint) (*models.GroupInvitation, error)
	ListPendingForUser(userID uint) ([]models.GroupInvitation, error)
	Transition(id uint, from, to models.InvitationStatus, at time.Time) error
	ExpireStale(now time.Time) (int64, error)
}

// MessageRepositoryInterface defines the contract for message repository operations
type MessageRepositoryInterface interface {
	InsertBatchIdempotent(senderID uint, messages []models.Message) ([]models.Message, int, error)
	FindGroupMessagesSince(groupID uint, since *time.Time) ([]models.Message, error)
	MarkRead(groupID, readerID uint, messageIDs []uint, at time.Time) (int, error)
}

// NotificationRepositoryInterface defines the contract for notification inbox operations
type NotificationRepositoryInterface interface {
	CreateBatch(notifications []models.Notification) error
	ListForUser(userID uint, now time.Time, limit int) ([]models.Notification, error)
	CountUnread(userID uint, now time.Time) (int64, error)
	MarkRead(id, userID uint) (bool, error)
	DeleteExpired(now time.Time) (int64, error)
}

type SystemLogRepositoryInterface interface {
	Create(entry *models.SystemLog) error
	List(filter LogFilter) ([]models.SystemLog, int64, error)
	Resolve(id, resolvedBy uint, resolution string, at time.Time) (bool, error)
	DeleteRoutineBefore(cutoff time.Time) (int64, error)
}

type SettingRepositoryInterface interface {
	List() ([]models.SystemSetting, error)
	Get(key string) (*models.SystemSetting, error)
	Upsert(setting *models.SystemSetting) error
	CreateIfMissing(setting *models.SystemSetting) error
}
