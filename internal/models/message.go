package models

import (
	"time"

	"gorm.io/datatypes"
)

type MessageType string

const (
	TextMessage     MessageType = "text"
	ImageMessage    MessageType = "image"
	LocationMessage MessageType = "location"
	FileMessage     MessageType = "file"
)

func (t MessageType) Valid() bool {
	switch t {
	case TextMessage, ImageMessage, LocationMessage, FileMessage:
		return true
	}
	return false
}

type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Message is immutable once synced except for Status, ReadAt and Reads.
type Message struct {
	ID uint `gorm:"primarykey" json:"id"`

	// Client-generated id, unique per sender
	LocalMessageID string `gorm:"type:varchar(64);uniqueIndex:idx_local_sender;not null" json:"local_message_id"`
	SenderID       uint   `gorm:"not null;uniqueIndex:idx_local_sender;index" json:"sender_id"`
	Sender         User   `gorm:"foreignKey:SenderID" json:"sender"`
	GroupID        uint   `gorm:"not null;index:idx_group_sent" json:"group_id"`

	Content string      `gorm:"type:text;not null" json:"content"`
	Type    MessageType `gorm:"type:varchar(10);not null;default:text" json:"type"`

	Status   MessageStatus `gorm:"type:varchar(10);not null;default:pending" json:"status"`
	SentAt   time.Time     `gorm:"not null;index:idx_group_sent" json:"sent_at"`
	SyncedAt time.Time     `gorm:"not null" json:"synced_at"`
	ReadAt   *time.Time    `json:"read_at,omitempty"`

	Metadata datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`

	Reads []MessageRead `gorm:"foreignKey:MessageID" json:"-"`
}

// MessageRead is one reader of one message; the pair is the primary key.
type MessageRead struct {
	MessageID uint      `gorm:"primaryKey" json:"message_id"`
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	ReadAt    time.Time `gorm:"not null" json:"read_at"`
}

type MessageResponse struct {
	ID             uint              `json:"id"`
	LocalMessageID string            `json:"local_message_id"`
	GroupID        uint              `json:"group_id"`
	Sender         UserSummary       `json:"sender"`
	Content        string            `json:"content"`
	Type           MessageType       `json:"type"`
	Status         MessageStatus     `json:"status"`
	SentAt         time.Time         `json:"sent_at"`
	SyncedAt       time.Time         `json:"synced_at"`
	ReadAt         *time.Time        `json:"read_at,omitempty"`
	ReadBy         []uint            `json:"read_by"`
	Metadata       datatypes.JSONMap `json:"metadata"`
}

func (m *Message) ReadBy() []uint {
	ids := make([]uint, 0, len(m.Reads))
	for _, r := range m.Reads {
		ids = append(ids, r.UserID)
	}
	return ids
}

func (m *Message) ToResponse() MessageResponse {
	metadata := m.Metadata
	if metadata == nil {
		metadata = datatypes.JSONMap{}
	}
	return MessageResponse{
		ID:             m.ID,
		LocalMessageID: m.LocalMessageID,
		GroupID:        m.GroupID,
		Sender:         m.Sender.Summary(),
		Content:        m.Content,
		Type:           m.Type,
		Status:         m.Status,
		SentAt:         m.SentAt,
		SyncedAt:       m.SyncedAt,
		ReadAt:         m.ReadAt,
		ReadBy:         m.ReadBy(),
		Metadata:       metadata,
	}
}
