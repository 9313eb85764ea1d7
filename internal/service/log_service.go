package service

import (
	"time"

	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// LogService persists operational events for the admin console.
type LogService struct {
	repo repository.SystemLogRepositoryInterface
	log  logrus.FieldLogger
}

func NewLogService(repo repository.SystemLogRepositoryInterface, log logrus.FieldLogger) *LogService {
	return &LogService{repo: repo, log: log}
}

type LogEntry struct {
	Level     models.LogLevel
	Category  models.LogCategory
	Message   string
	Details   map[string]interface{}
	UserID    *uint
	RequestID string
}

// Record stores an entry. Failures are logged and swallowed.
func (s *LogService) Record(e LogEntry) {
	if s == nil || s.repo == nil {
		return
	}
	entry := &models.SystemLog{
		Level:     e.Level,
		Category:  e.Category,
		Message:   e.Message,
		Details:   datatypes.JSONMap(e.Details),
		UserID:    e.UserID,
		RequestID: e.RequestID,
	}
	if err := s.repo.Create(entry); err != nil {
		s.log.WithError(err).WithField("message", e.Message).Error("failed to persist system log")
	}
}

type LogPage struct {
	Logs  []models.SystemLog `json:"logs"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Pages int                `json:"pages"`
	Limit int                `json:"limit"`
}

func (s *LogService) List(filter repository.LogFilter) (*LogPage, error) {
	filter.Page = normalizePage(filter.Page)
	logs, total, err := s.repo.List(filter)
	if err != nil {
		return nil, apperr.Unexpected("logs_list_failed", err)
	}
	return &LogPage{
		Logs:  logs,
		Total: total,
		Page:  filter.Page.Page,
		Pages: pageCount(total, filter.Limit),
		Limit: filter.Limit,
	}, nil
}

func (s *LogService) Resolve(id, actorID uint, resolution string) error {
	ok, err := s.repo.Resolve(id, actorID, resolution, time.Now())
	if err != nil {
		return apperr.Unexpected("log_resolve_failed", err)
	}
	if !ok {
		return apperr.NotFound("log_not_found", "Log entry not found")
	}
	return nil
}

func normalizePage(p repository.Page) repository.Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

func pageCount(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
