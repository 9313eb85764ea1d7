package testutil

import (
	"sync"

	"github.com/noteduco342/tourchat-backend/internal/models"
)

// Push is one recorded live event.
type Push struct {
	UserID  uint
	Event   string
	Payload interface{}
}

// RecordingPusher captures pushes instead of delivering them.
type RecordingPusher struct {
	mu     sync.Mutex
	pushes []Push
}

func (p *RecordingPusher) PushToUser(userID uint, event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, Push{UserID: userID, Event: event, Payload: payload})
}

func (p *RecordingPusher) Pushes() []Push {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Push(nil), p.pushes...)
}

// Recipients returns the user ids that received event, in push order.
func (p *RecordingPusher) Recipients(event string) []uint {
	var ids []uint
	for _, push := range p.Pushes() {
		if push.Event == event {
			ids = append(ids, push.UserID)
		}
	}
	return ids
}

// Notification is one recorded Notify call.
type Notification struct {
	UserIDs []uint
	Title   string
	Type    models.NotificationType
	GroupID *uint
}

// RecordingNotifier records Notify calls synchronously.
type RecordingNotifier struct {
	mu    sync.Mutex
	calls []Notification
}

func (n *RecordingNotifier) Notify(userIDs []uint, title, content string, typ models.NotificationType, groupID *uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, Notification{UserIDs: userIDs, Title: title, Type: typ, GroupID: groupID})
}

func (n *RecordingNotifier) Calls() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.calls...)
}
