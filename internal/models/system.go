package models

import (
	"time"

	"gorm.io/datatypes"
)

type LogLevel string

const (
	LevelInfo     LogLevel = "info"
	LevelWarning  LogLevel = "warning"
	LevelError    LogLevel = "error"
	LevelCritical LogLevel = "critical"
)

type LogCategory string

const (
	CategorySystem       LogCategory = "system"
	CategoryAuth         LogCategory = "auth"
	CategoryDatabase     LogCategory = "database"
	CategoryAPI          LogCategory = "api"
	CategoryBluetooth    LogCategory = "bluetooth"
	CategoryNotification LogCategory = "notification"
)

// SystemLog is an operational event surfaced in the admin console.
type SystemLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Level      LogLevel          `gorm:"type:varchar(10);not null;index" json:"level"`
	Category   LogCategory       `gorm:"type:varchar(20);not null;index" json:"category"`
	Message    string            `gorm:"type:text;not null" json:"message"`
	Details    datatypes.JSONMap `gorm:"type:jsonb" json:"details,omitempty"`
	UserID     *uint             `json:"user_id,omitempty"`
	RequestID  string            `gorm:"size:64" json:"request_id,omitempty"`
	Resolved   bool              `gorm:"default:false;index" json:"resolved"`
	ResolvedBy *uint             `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`
	Resolution string            `gorm:"size:500" json:"resolution,omitempty"`
}

// SystemSetting is a single key/value entry; Value holds {"value": <any>}.
type SystemSetting struct {
	Key         string            `gorm:"primaryKey;size:100" json:"key"`
	Value       datatypes.JSONMap `gorm:"type:jsonb;not null" json:"value"`
	Description string            `gorm:"size:255" json:"description"`
	UpdatedBy   *uint             `json:"updated_by,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
