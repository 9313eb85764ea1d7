package service

import (
	"strconv"
	"time"

	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	SettingMaintenanceMode        = "maintenance.mode"
	SettingMaxLoginAttempts       = "security.max_login_attempts"
	SettingLockoutDuration        = "security.lockout_duration"
	SettingNotificationExpiryDays = "notification.expiry_days"
	SettingMaxGroupMembers        = "performance.max_group_members"
	SettingMessageBatchSize       = "performance.message_batch_size"
)

func setting(key string, value interface{}, description string) models.SystemSetting {
	return models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSONMap{"value": value},
		Description: description,
	}
}

// DefaultSettings are seeded at startup. Existing values are never overwritten.
var DefaultSettings = []models.SystemSetting{
	setting(SettingMaintenanceMode, false, "Reject non-admin API traffic"),
	setting(SettingMaxLoginAttempts, 5, "Verification attempts before lockout"),
	setting(SettingLockoutDuration, 30, "Lockout duration in minutes"),
	setting(SettingNotificationExpiryDays, 30, "Days before notifications expire"),
	setting(SettingMaxGroupMembers, 100, "Maximum members per tour group"),
	setting(SettingMessageBatchSize, 50, "Maximum messages per sync batch"),
}

type SettingsService struct {
	repo repository.SettingRepositoryInterface
	log  logrus.FieldLogger
}

func NewSettingsService(repo repository.SettingRepositoryInterface, log logrus.FieldLogger) *SettingsService {
	return &SettingsService{repo: repo, log: log}
}

func (s *SettingsService) EnsureDefaults() error {
	for i := range DefaultSettings {
		def := DefaultSettings[i]
		def.UpdatedAt = time.Now()
		if err := s.repo.CreateIfMissing(&def); err != nil {
			return err
		}
	}
	return nil
}

func (s *SettingsService) List() ([]models.SystemSetting, error) {
	settings, err := s.repo.List()
	if err != nil {
		return nil, apperr.Unexpected("settings_list_failed", err)
	}
	return settings, nil
}

// Update replaces the value of an existing setting.
func (s *SettingsService) Update(key string, value interface{}, actorID uint) (*models.SystemSetting, error) {
	if value == nil {
		return nil, apperr.Validation("value_required", "Value is required")
	}
	current, err := s.repo.Get(key)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("setting_not_found", "Setting not found")
		}
		return nil, apperr.Unexpected("setting_lookup_failed", err)
	}

	current.Value = datatypes.JSONMap{"value": value}
	current.UpdatedBy = &actorID
	current.UpdatedAt = time.Now()
	if err := s.repo.Upsert(current); err != nil {
		return nil, apperr.Unexpected("setting_update_failed", err)
	}
	s.log.WithFields(logrus.Fields{"key": key, "actor_id": actorID}).Info("setting updated")
	return current, nil
}

func (s *SettingsService) raw(key string) (interface{}, bool) {
	if s == nil || s.repo == nil {
		return nil, false
	}
	st, err := s.repo.Get(key)
	if err != nil {
		if !repository.IsNotFound(err) && s.log != nil {
			s.log.WithError(err).WithField("key", key).Warn("setting lookup failed, using default")
		}
		return nil, false
	}
	v, ok := st.Value["value"]
	return v, ok
}

// Int returns the setting as an int, or fallback when unset or malformed.
func (s *SettingsService) Int(key string, fallback int) int {
	v, ok := s.raw(key)
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return fallback
}

func (s *SettingsService) Bool(key string, fallback bool) bool {
	v, ok := s.raw(key)
	if !ok {
		return fallback
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return fallback
}
