package service

import (
	"testing"

	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/logger"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/testutil"
)

func TestNotifyPersistsAndPushes(t *testing.T) {
	db := testutil.NewMemoryDB()
	settings := NewSettingsService(db.Settings(), logger.Discard())
	svc := NewNotificationService(db.NotificationRepo(), settings, logger.Discard())
	pusher := &testutil.RecordingPusher{}
	svc.SetPusher(pusher)

	groupID := uint(7)
	svc.Notify([]uint{1, 2}, "Group invitation", "Join us", models.NotifyInvitation, &groupID)
	svc.Notify(nil, "ignored", "", models.NotifyMessage, nil)
	svc.Wait()

	stored := db.Notifications()
	if len(stored) != 2 {
		t.Fatalf("stored notifications = %d, want 2", len(stored))
	}
	if stored[0].RelatedGroupID == nil || *stored[0].RelatedGroupID != groupID {
		t.Errorf("RelatedGroupID = %v, want %d", stored[0].RelatedGroupID, groupID)
	}
	if got := pusher.Recipients(EventNotification); len(got) != 2 {
		t.Errorf("pushed to %v, want both recipients", got)
	}

	list, unread, err := svc.List(1, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || unread != 1 {
		t.Errorf("List() = %d items, %d unread; want 1/1", len(list), unread)
	}

	if err := svc.MarkRead(list[0].ID, 1); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if _, unread, _ := svc.List(1, 10); unread != 0 {
		t.Errorf("unread after MarkRead = %d, want 0", unread)
	}

	// Another user's notification is not visible.
	assertKind(t, svc.MarkRead(list[0].ID, 2), apperr.KindNotFound)
}

func TestNotifyNilServiceIsNoop(t *testing.T) {
	var svc *NotificationService
	svc.Notify([]uint{1}, "t", "c", models.NotifyMessage, nil)
}
