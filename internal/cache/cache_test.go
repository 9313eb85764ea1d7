package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/noteduco342/tourchat-backend/internal/models"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := NewRedisCache(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestRedisCacheGetMissing(t *testing.T) {
	rc, _ := newTestRedis(t)

	val, err := rc.Get("missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val != nil {
		t.Errorf("Get() = %v, want nil", val)
	}
}

func TestRedisCacheIncrSetsTTLOnce(t *testing.T) {
	rc, mr := newTestRedis(t)

	for i := int64(1); i <= 3; i++ {
		n, err := rc.Incr("counter", time.Minute)
		if err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if n != i {
			t.Errorf("Incr() = %d, want %d", n, i)
		}
	}
	if ttl := mr.TTL("counter"); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}
}

func TestMessageCacheVersioning(t *testing.T) {
	rc, _ := newTestRedis(t)
	mc := NewMessageCache(rc)

	msgs := []models.MessageResponse{
		{ID: 1, LocalMessageID: "a", GroupID: 7, Content: "hello", Type: models.TextMessage, ReadBy: []uint{}},
	}

	version := mc.GroupVersion(7)
	if err := mc.SetGroupPull(7, version, nil, msgs); err != nil {
		t.Fatalf("SetGroupPull() error = %v", err)
	}

	got, ok := mc.GetGroupPull(7, nil)
	if !ok {
		t.Fatal("GetGroupPull() miss, want hit")
	}
	if len(got) != 1 || got[0].LocalMessageID != "a" {
		t.Errorf("GetGroupPull() = %+v, want one message with local id a", got)
	}

	since := time.Unix(100, 0)
	if _, ok := mc.GetGroupPull(7, &since); ok {
		t.Error("GetGroupPull(since) hit, want miss for a different cursor")
	}

	if err := mc.InvalidateGroup(7); err != nil {
		t.Fatalf("InvalidateGroup() error = %v", err)
	}
	if _, ok := mc.GetGroupPull(7, nil); ok {
		t.Error("GetGroupPull() hit after invalidation, want miss")
	}
}

func TestMessageCacheStaleWriteIsInvisible(t *testing.T) {
	rc, _ := newTestRedis(t)
	mc := NewMessageCache(rc)

	version := mc.GroupVersion(3)
	// a sync lands between the reader's version read and its cache write
	if err := mc.InvalidateGroup(3); err != nil {
		t.Fatalf("InvalidateGroup() error = %v", err)
	}
	if err := mc.SetGroupPull(3, version, nil, []models.MessageResponse{{ID: 1}}); err != nil {
		t.Fatalf("SetGroupPull() error = %v", err)
	}

	if _, ok := mc.GetGroupPull(3, nil); ok {
		t.Error("GetGroupPull() returned an entry written under a stale version")
	}
}

func TestNilMessageCache(t *testing.T) {
	var mc *MessageCache
	if _, ok := mc.GetGroupPull(1, nil); ok {
		t.Error("nil cache GetGroupPull() hit, want miss")
	}
	if err := mc.InvalidateGroup(1); err != nil {
		t.Errorf("nil cache InvalidateGroup() error = %v", err)
	}
}

func TestOTPCache(t *testing.T) {
	rc, mr := newTestRedis(t)
	oc := NewOTPCache(rc)

	entry := OTPEntry{CodeHash: "hash", ExpiresAt: time.Now().Add(time.Minute).Truncate(time.Second)}
	if err := oc.Save("+15550001111", entry, time.Minute); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := oc.Load("+15550001111")
	if err != nil || got == nil {
		t.Fatalf("Load() = %v, %v", got, err)
	}
	if got.CodeHash != "hash" || !got.ExpiresAt.Equal(entry.ExpiresAt) {
		t.Errorf("Load() = %+v, want %+v", got, entry)
	}

	if n, _ := oc.RecordAttempt("+15550001111", time.Minute); n != 1 {
		t.Errorf("RecordAttempt() = %d, want 1", n)
	}
	if n, _ := oc.RecordAttempt("+15550001111", time.Minute); n != 2 {
		t.Errorf("RecordAttempt() = %d, want 2", n)
	}

	// a resend resets attempts
	if err := oc.Save("+15550001111", entry, time.Minute); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if n, _ := oc.RecordAttempt("+15550001111", time.Minute); n != 1 {
		t.Errorf("RecordAttempt() after resend = %d, want 1", n)
	}

	mr.FastForward(2 * time.Minute)
	if got, _ := oc.Load("+15550001111"); got != nil {
		t.Errorf("Load() after TTL = %+v, want nil", got)
	}
}

func TestUserCachePresence(t *testing.T) {
	rc, _ := newTestRedis(t)
	uc := NewUserCache(rc)

	if uc.IsUserOnline(5) {
		t.Error("IsUserOnline() = true before connect")
	}
	_ = uc.SetUserOnline(5)
	if !uc.IsUserOnline(5) {
		t.Error("IsUserOnline() = false after SetUserOnline")
	}
	_ = uc.SetUserOffline(5)
	if uc.IsUserOnline(5) {
		t.Error("IsUserOnline() = true after SetUserOffline")
	}
}
