package ws

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/cache"
	"github.com/noteduco342/tourchat-backend/internal/logger"
)

type frame struct {
	kind int
	data []byte
}

type fakeConn struct {
	mu        sync.Mutex
	frames    []frame
	pings     int
	closed    bool
	failNext  error
	onPong    func(string) error
	deadlines int
}

func (f *fakeConn) WriteMessage(kind int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		return f.failNext
	}
	f.frames = append(f.frames, frame{kind: kind, data: append([]byte(nil), data...)})
	return nil
}

func (f *fakeConn) WriteControl(kind int, _ []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		return f.failNext
	}
	if kind == websocket.PingMessage {
		f.pings++
	}
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error             { return nil }
func (f *fakeConn) SetPongHandler(h func(appData string) error) { f.onPong = h }

func (f *fakeConn) SetWriteDeadline(time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadlines++
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// waitFrames blocks until n frames were written by the client's writer.
func (f *fakeConn) waitFrames(t *testing.T, n int) []frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		if len(f.frames) >= n {
			out := append([]frame(nil), f.frames...)
			f.mu.Unlock()
			return out
		}
		f.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d frames", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// stalledConn models a peer that stopped reading: writes hang until Close.
type stalledConn struct {
	fakeConn
	entered  chan struct{}
	released chan struct{}
	once     sync.Once
}

func newStalledConn() *stalledConn {
	return &stalledConn{entered: make(chan struct{}, 1), released: make(chan struct{})}
}

func (s *stalledConn) WriteMessage(int, []byte) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.released
	return errors.New("use of closed connection")
}

func (s *stalledConn) Close() error {
	s.once.Do(func() { close(s.released) })
	return s.fakeConn.Close()
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) last(t *testing.T) map[string]interface{} {
	t.Helper()
	frames := f.waitFrames(t, 1)
	fr := frames[len(frames)-1]
	data := fr.data
	if fr.kind == websocket.BinaryMessage {
		var err error
		if data, err = DecompressMessage(data); err != nil {
			t.Fatalf("DecompressMessage() error = %v", err)
		}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("frame is not JSON: %v", err)
	}
	return out
}

func newTestHub(t *testing.T) (*Hub, *cache.UserCache, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	presence := cache.NewUserCache(cache.NewRedisCache(mr.Addr(), "", 0))
	hub := NewHub(presence, nil, logger.Discard())
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	hub.now = func() time.Time { return now }
	return hub, presence, &now
}

func TestRegisterAndPush(t *testing.T) {
	hub, presence, _ := newTestHub(t)
	conn := &fakeConn{}
	hub.Register(7, conn, false)

	if !hub.IsOnline(7) || !presence.IsUserOnline(7) {
		t.Fatal("user 7 should be online after Register")
	}

	hub.PushToUser(7, "notification.new", map[string]string{"title": "Bus leaves at 9"})
	got := conn.last(t)
	if got["type"] != "notification.new" {
		t.Errorf("type = %v, want notification.new", got["type"])
	}
	payload, _ := got["payload"].(map[string]interface{})
	if payload["title"] != "Bus leaves at 9" {
		t.Errorf("payload = %v", got["payload"])
	}

	// Offline users are skipped silently.
	hub.PushToUser(8, "notification.new", nil)
}

func TestNewConnectionReplacesOld(t *testing.T) {
	hub, presence, _ := newTestHub(t)
	first := &fakeConn{}
	second := &fakeConn{}

	c1 := hub.Register(7, first, false)
	hub.Register(7, second, false)
	if !first.isClosed() {
		t.Error("first connection should be closed when replaced")
	}

	// The stale reader exiting must not unregister the new connection.
	hub.Unregister(c1)
	if !hub.IsOnline(7) || !presence.IsUserOnline(7) {
		t.Error("user 7 should remain online through the newer connection")
	}
	if hub.Count() != 1 {
		t.Errorf("Count() = %d, want 1", hub.Count())
	}
}

func TestPushFailureDropsClient(t *testing.T) {
	hub, presence, _ := newTestHub(t)
	conn := &fakeConn{failNext: errors.New("broken pipe")}
	hub.Register(7, conn, false)

	hub.PushToUser(7, "messages.synced", nil)

	waitFor(t, "client removal", func() bool { return !hub.IsOnline(7) })
	if presence.IsUserOnline(7) {
		t.Error("user 7 should be offline after a failed push")
	}
	if !conn.isClosed() {
		t.Error("connection should be closed")
	}
}

func TestStalledConnectionDoesNotBlockPushOrPing(t *testing.T) {
	hub, _, _ := newTestHub(t)
	stalled := newStalledConn()
	healthy := &fakeConn{}
	hub.Register(7, stalled, false)
	hub.Register(8, healthy, false)

	hub.PushToUser(7, "messages.synced", nil)
	<-stalled.entered

	// With the writer stuck, pushes only queue until the buffer overflows.
	pushed := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer+1; i++ {
			hub.PushToUser(7, "messages.synced", nil)
		}
		hub.PushToUser(8, "messages.synced", nil)
		close(pushed)
	}()
	select {
	case <-pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("PushToUser blocked behind a stalled connection")
	}

	checked := make(chan struct{})
	go func() {
		hub.checkConnections()
		close(checked)
	}()
	select {
	case <-checked:
	case <-time.After(2 * time.Second):
		t.Fatal("checkConnections blocked behind a stalled connection")
	}

	if hub.IsOnline(7) || !stalled.isClosed() {
		t.Error("overflowing client should be dropped and closed")
	}
	if !hub.IsOnline(8) {
		t.Error("healthy client should stay online")
	}
	healthy.waitFrames(t, 1)
	healthy.mu.Lock()
	deadlines := healthy.deadlines
	healthy.mu.Unlock()
	if deadlines == 0 {
		t.Error("write deadline should be set before each write")
	}
}

func TestGzipLargePayload(t *testing.T) {
	hub, _, _ := newTestHub(t)
	conn := &fakeConn{}
	hub.Register(7, conn, true)

	hub.PushToUser(7, "messages.synced", map[string]string{"content": strings.Repeat("ola ", 400)})
	if frames := conn.waitFrames(t, 1); frames[0].kind != websocket.BinaryMessage {
		t.Fatalf("frame kind = %d, want binary", frames[0].kind)
	}
	if got := conn.last(t); got["type"] != "messages.synced" {
		t.Errorf("type = %v", got["type"])
	}

	hub.PushToUser(7, "pong", nil)
	if frames := conn.waitFrames(t, 2); frames[1].kind != websocket.TextMessage {
		t.Errorf("small payload frame kind = %d, want text", frames[1].kind)
	}
}

func TestCheckConnections(t *testing.T) {
	hub, _, now := newTestHub(t)
	healthy := &fakeConn{}
	stale := &fakeConn{}
	hub.Register(1, healthy, false)
	hub.Register(2, stale, false)

	*now = now.Add(60 * time.Second)
	if err := healthy.onPong(""); err != nil {
		t.Fatalf("pong handler error = %v", err)
	}
	*now = now.Add(60 * time.Second)

	hub.checkConnections()

	if !hub.IsOnline(1) {
		t.Error("user 1 answered a pong and should stay online")
	}
	if healthy.pings != 1 {
		t.Errorf("pings = %d, want 1", healthy.pings)
	}
	if hub.IsOnline(2) || !stale.isClosed() {
		t.Error("user 2 missed its pong window and should be dropped")
	}
}

type fakeReads struct {
	groupID uint
	userID  uint
	ids     []uint
	err     error
}

func (f *fakeReads) MarkRead(groupID, userID uint, ids []uint) (time.Time, int, error) {
	if f.err != nil {
		return time.Time{}, 0, f.err
	}
	f.groupID, f.userID, f.ids = groupID, userID, ids
	return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC), len(ids), nil
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		reads    *fakeReads
		wantType string
		wantCode string
	}{
		{"Ping", `{"type":"ping"}`, &fakeReads{}, "pong", ""},
		{"Read receipt", `{"type":"messages.read","payload":{"group_id":3,"message_ids":[10,11]}}`, &fakeReads{}, MsgReadAck, ""},
		{"Unknown type", `{"type":"typing"}`, &fakeReads{}, "error", "invalid_message"},
		{"Garbage", `not json`, &fakeReads{}, "error", "invalid_message"},
		{"Forbidden group", `{"type":"messages.read","payload":{"group_id":3,"message_ids":[1]}}`, &fakeReads{err: apperr.Forbidden("group_forbidden", "Access denied")}, "error", "group_forbidden"},
		{"Storage failure", `{"type":"messages.read","payload":{"group_id":3,"message_ids":[1]}}`, &fakeReads{err: errors.New("db down")}, "error", "processing_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, _, _ := newTestHub(t)
			conn := &fakeConn{}
			client := hub.Register(5, conn, false)
			ctx := &MessageContext{UserID: 5, Client: client, Hub: hub, Messages: tt.reads, Log: logger.Discard()}

			Handle(ctx, websocket.TextMessage, []byte(tt.frame))

			got := conn.last(t)
			if got["type"] != tt.wantType {
				t.Fatalf("reply type = %v, want %s (%v)", got["type"], tt.wantType, got)
			}
			if tt.wantCode != "" && got["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", got["code"], tt.wantCode)
			}
		})
	}
}

func TestHandleReadPassesCaller(t *testing.T) {
	hub, _, _ := newTestHub(t)
	reads := &fakeReads{}
	client := hub.Register(5, &fakeConn{}, false)
	ctx := &MessageContext{UserID: 5, Client: client, Hub: hub, Messages: reads, Log: logger.Discard()}

	Handle(ctx, websocket.TextMessage, []byte(`{"type":"messages.read","payload":{"group_id":3,"message_ids":[10]}}`))

	if reads.groupID != 3 || reads.userID != 5 || len(reads.ids) != 1 {
		t.Errorf("MarkRead called with group=%d user=%d ids=%v", reads.groupID, reads.userID, reads.ids)
	}
}
