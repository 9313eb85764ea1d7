package repository

import (
	"time"

	"github.com/noteduco342/tourchat-backend/internal/models"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateBatch inserts one notification per recipient
func (r *NotificationRepository) CreateBatch(notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.CreateInBatches(&notifications, 100).Error
}

// ListForUser returns unexpired notifications, newest first
func (r *NotificationRepository) ListForUser(userID uint, now time.Time, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.Where("recipient_id = ? AND expires_at > ?", userID, now).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

// CountUnread returns the number of unread, unexpired notifications
func (r *NotificationRepository) CountUnread(userID uint, now time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ? AND expires_at > ?", userID, false, now).
		Count(&count).Error
	return count, err
}

// MarkRead flags a notification as read if it belongs to userID
func (r *NotificationRepository) MarkRead(id, userID uint) (bool, error) {
	res := r.db.Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, userID).
		Update("is_read", true)
	return res.RowsAffected > 0, res.Error
}

// DeleteExpired removes notifications past their expiry
func (r *NotificationRepository) DeleteExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at <= ?", now).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
