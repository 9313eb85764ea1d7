package service

import (
	"context"
	"time"

	"github.com/noteduco342/tourchat-backend/internal/repository"
	"github.com/sirupsen/logrus"
)

// LogRetention is how long info and warning system logs are kept.
const LogRetention = 30 * 24 * time.Hour

// Sweeper performs periodic housekeeping. Nothing depends on it for
// correctness; invitation expiry is also applied lazily on accept.
type Sweeper struct {
	invitations   repository.InvitationRepositoryInterface
	notifications repository.NotificationRepositoryInterface
	logs          repository.SystemLogRepositoryInterface
	interval      time.Duration
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewSweeper(
	invitations repository.InvitationRepositoryInterface,
	notifications repository.NotificationRepositoryInterface,
	logs repository.SystemLogRepositoryInterface,
	interval time.Duration,
	log logrus.FieldLogger,
) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		invitations:   invitations,
		notifications: notifications,
		logs:          logs,
		interval:      interval,
		log:           log,
		now:           time.Now,
	}
}

type SweepResult struct {
	ExpiredInvitations   int64
	DeletedNotifications int64
	DeletedLogs          int64
}

// Run sweeps every interval until ctx is cancelled. Launch it in its own
// goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Sweeper stopped")
			return
		case <-ticker.C:
			res := s.RunOnce()
			if res.ExpiredInvitations+res.DeletedNotifications+res.DeletedLogs > 0 {
				s.log.WithFields(logrus.Fields{
					"expired_invitations":   res.ExpiredInvitations,
					"deleted_notifications": res.DeletedNotifications,
					"deleted_logs":          res.DeletedLogs,
				}).Info("sweep completed")
			}
		}
	}
}

// RunOnce performs a single sweep. Each step runs even if an earlier one
// failed; failures are logged.
func (s *Sweeper) RunOnce() SweepResult {
	var res SweepResult
	now := s.now()

	n, err := s.invitations.ExpireStale(now)
	if err != nil {
		s.log.Errorf("Failed to expire invitations: %v", err)
	}
	res.ExpiredInvitations = n

	n, err = s.notifications.DeleteExpired(now)
	if err != nil {
		s.log.Errorf("Failed to delete expired notifications: %v", err)
	}
	res.DeletedNotifications = n

	n, err = s.logs.DeleteRoutineBefore(now.Add(-LogRetention))
	if err != nil {
		s.log.Errorf("Failed to delete old system logs: %v", err)
	}
	res.DeletedLogs = n

	return res
}
