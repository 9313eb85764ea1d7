package repository

import (
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func InitDB(dsn string, log *logrus.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if log.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Info
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(log, gormlogger.Config{
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate models
	if err := db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.TourGroup{},
		&models.GroupMember{},
		&models.GroupInvitation{},
		&models.Message{},
		&models.MessageRead{},
		&models.Notification{},
		&models.SystemLog{},
		&models.SystemSetting{},
	); err != nil {
		return nil, err
	}

	return db, nil
}
