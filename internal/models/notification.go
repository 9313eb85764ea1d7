package models

import (
	"time"
)

type NotificationType string

const (
	NotifyMessage      NotificationType = "message"
	NotifyAnnouncement NotificationType = "announcement"
	NotifyInvitation   NotificationType = "invitation"
	NotifyGroupUpdate  NotificationType = "group_update"
)

// Notification is a per-recipient inbox entry. Expired rows are swept.
type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	RecipientID    uint             `gorm:"not null;index:idx_notification_recipient" json:"recipient_id"`
	Type           NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Title          string           `gorm:"size:100;not null" json:"title"`
	Content        string           `gorm:"size:500;not null" json:"content"`
	RelatedGroupID *uint            `json:"related_group_id,omitempty"`
	IsRead         bool             `gorm:"default:false;index:idx_notification_recipient" json:"is_read"`
	ExpiresAt      time.Time        `gorm:"not null;index" json:"expires_at"`
}
