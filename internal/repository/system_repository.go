package repository

import (
	"time"

	"github.com/noteduco342/tourchat-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SystemLogRepository struct {
	db *gorm.DB
}

func NewSystemLogRepository(db *gorm.DB) *SystemLogRepository {
	return &SystemLogRepository{db: db}
}

func (r *SystemLogRepository) Create(entry *models.SystemLog) error {
	return r.db.Create(entry).Error
}

func (r *SystemLogRepository) List(filter LogFilter) ([]models.SystemLog, int64, error) {
	q := r.db.Model(&models.SystemLog{})
	if filter.Level != "" {
		q = q.Where("level = ?", filter.Level)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Resolved != nil {
		q = q.Where("resolved = ?", *filter.Resolved)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.SystemLog
	err := q.Order("created_at DESC, id DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit).
		Find(&logs).Error
	return logs, total, err
}

func (r *SystemLogRepository) Resolve(id, resolvedBy uint, resolution string, at time.Time) (bool, error) {
	res := r.db.Model(&models.SystemLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_by": resolvedBy,
			"resolved_at": at,
			"resolution":  resolution,
		})
	return res.RowsAffected > 0, res.Error
}

// DeleteRoutineBefore removes info and warning entries older than cutoff.
// Error and critical entries are kept.
func (r *SystemLogRepository) DeleteRoutineBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ? AND level IN ?", cutoff, []models.LogLevel{models.LevelInfo, models.LevelWarning}).
		Delete(&models.SystemLog{})
	return res.RowsAffected, res.Error
}

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

func (r *SettingRepository) List() ([]models.SystemSetting, error) {
	var settings []models.SystemSetting
	err := r.db.Order("key ASC").Find(&settings).Error
	return settings, err
}

func (r *SettingRepository) Get(key string) (*models.SystemSetting, error) {
	var setting models.SystemSetting
	if err := r.db.Where("key = ?", key).First(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *SettingRepository) Upsert(setting *models.SystemSetting) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(setting).Error
}

// CreateIfMissing seeds a default without overwriting an admin's change.
func (r *SettingRepository) CreateIfMissing(setting *models.SystemSetting) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(setting).Error
}
