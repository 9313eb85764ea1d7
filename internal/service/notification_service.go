package service

import (
	"sync"
	"time"

	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/repository"
	"github.com/sirupsen/logrus"
)

// Pusher delivers a live event to a connected user. Offline users are skipped.
type Pusher interface {
	PushToUser(userID uint, event string, payload interface{})
}

// Notifier is the fire-and-forget notification entry point used by other
// services.
type Notifier interface {
	Notify(userIDs []uint, title, content string, typ models.NotificationType, groupID *uint)
}

const EventNotification = "notification.new"

type NotificationService struct {
	repo     repository.NotificationRepositoryInterface
	settings *SettingsService
	log      logrus.FieldLogger

	mu     sync.RWMutex
	pusher Pusher
	wg     sync.WaitGroup
}

func NewNotificationService(repo repository.NotificationRepositoryInterface, settings *SettingsService, log logrus.FieldLogger) *NotificationService {
	return &NotificationService{repo: repo, settings: settings, log: log}
}

// SetPusher attaches the live delivery channel once the hub exists.
func (s *NotificationService) SetPusher(p Pusher) {
	s.mu.Lock()
	s.pusher = p
	s.mu.Unlock()
}

// Notify persists and pushes in the background. Errors never reach the caller.
func (s *NotificationService) Notify(userIDs []uint, title, content string, typ models.NotificationType, groupID *uint) {
	if s == nil || len(userIDs) == 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.deliver(userIDs, title, content, typ, groupID); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"type":       typ,
				"recipients": len(userIDs),
			}).Error("notification delivery failed")
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) deliver(userIDs []uint, title, content string, typ models.NotificationType, groupID *uint) error {
	expiryDays := s.settings.Int(SettingNotificationExpiryDays, 30)
	expiresAt := time.Now().Add(time.Duration(expiryDays) * 24 * time.Hour)

	notifications := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		notifications = append(notifications, models.Notification{
			RecipientID:    id,
			Type:           typ,
			Title:          title,
			Content:        content,
			RelatedGroupID: groupID,
			ExpiresAt:      expiresAt,
		})
	}
	if err := s.repo.CreateBatch(notifications); err != nil {
		return err
	}

	s.mu.RLock()
	pusher := s.pusher
	s.mu.RUnlock()
	if pusher == nil {
		return nil
	}
	for i := range notifications {
		pusher.PushToUser(notifications[i].RecipientID, EventNotification, notifications[i])
	}
	return nil
}

func (s *NotificationService) List(userID uint, limit int) ([]models.Notification, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	now := time.Now()
	notifications, err := s.repo.ListForUser(userID, now, limit)
	if err != nil {
		return nil, 0, apperr.Unexpected("notifications_list_failed", err)
	}
	unread, err := s.repo.CountUnread(userID, now)
	if err != nil {
		return nil, 0, apperr.Unexpected("notifications_count_failed", err)
	}
	return notifications, unread, nil
}

func (s *NotificationService) MarkRead(id, userID uint) error {
	ok, err := s.repo.MarkRead(id, userID)
	if err != nil {
		return apperr.Unexpected("notification_update_failed", err)
	}
	if !ok {
		return apperr.NotFound("notification_not_found", "Notification not found")
	}
	return nil
}
