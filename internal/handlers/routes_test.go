package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/cache"
	"github.com/noteduco342/tourchat-backend/internal/logger"
	"github.com/noteduco342/tourchat-backend/internal/middleware"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/service"
	"github.com/noteduco342/tourchat-backend/internal/testutil"
)

type fakeTokens map[string]*service.Claims

func (f fakeTokens) ParseAccessToken(token string) (*service.Claims, error) {
	if claims, ok := f[token]; ok {
		return claims, nil
	}
	return nil, apperr.Unauthenticated("invalid_token", "Invalid or expired token")
}

type testEnv struct {
	app           *fiber.App
	db            *testutil.MemoryDB
	tokens        fakeTokens
	notifications *service.NotificationService

	guide    *models.User
	member   *models.User
	outsider *models.User
	admin    *models.User
	group    *models.TourGroup
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewMemoryDB()
	log := logger.Discard()
	mr := miniredis.RunT(t)
	redisCache := cache.NewRedisCache(mr.Addr(), "", 0)

	settings := service.NewSettingsService(db.Settings(), log)
	if err := settings.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults() error = %v", err)
	}
	logs := service.NewLogService(db.SystemLogs(), log)
	notifications := service.NewNotificationService(db.NotificationRepo(), settings, log)
	otp := service.NewOTPService(cache.NewOTPCache(redisCache), service.LogSender{Log: log}, settings, time.Minute, log)
	auth := service.NewAuthService(db.Users(), db.Tokens(), otp, logs, service.AuthConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
	}, log)
	groups := service.NewGroupService(db.Groups(), db.Invitations(), db.Users(), notifications, settings, nil, log)
	messages := service.NewMessageService(db.Messages(), db.Groups(), cache.NewMessageCache(redisCache), settings, nil, log)
	media := service.NewMediaService(nil, db.Groups(), log)
	admin := service.NewAdminService(db.Users(), db.Tokens(), logs, log)

	env := &testEnv{
		db:            db,
		tokens:        fakeTokens{},
		notifications: notifications,
		guide:         db.AddUser("+351910000001", models.RoleGuide),
		member:        db.AddUser("+351910000002", models.RoleUser),
		outsider:      db.AddUser("+351910000003", models.RoleUser),
		admin:         db.AddUser("+351910000004", models.RoleAdmin),
	}
	for _, u := range []*models.User{env.guide, env.member, env.outsider, env.admin} {
		env.tokens[tokenFor(u)] = &service.Claims{UserID: u.ID, PhoneNumber: u.PhoneNumber, Role: u.Role, Status: models.UserActive}
	}
	env.group = db.AddGroup(env.guide.ID, "Douro valley")
	db.AddMember(env.group.ID, env.member.ID, models.MemberActive)

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(log, logs)})
	app.Use(requestid.New())
	router := &Router{
		Auth:          NewAuthHandler(auth),
		Users:         NewUserHandler(service.NewUserService(db.Users())),
		Groups:        NewGroupHandler(groups),
		Messages:      NewMessageHandler(messages),
		Media:         NewMediaHandler(media, log),
		Notifications: NewNotificationHandler(notifications),
		Admin:         NewAdminHandler(admin, logs, settings),
		Tokens:        env.tokens,
		Settings:      settings,
	}
	router.Register(app)
	env.app = app
	return env
}

func tokenFor(u *models.User) string {
	return fmt.Sprintf("token-%d", u.ID)
}

func (e *testEnv) do(t *testing.T, method, path string, as *models.User, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(as))
	}

	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test(%s %s) error = %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]interface{}{}
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		_ = json.Unmarshal(data, &out)
	}
	return resp.StatusCode, out
}

func (e *testEnv) groupPath(suffix string) string {
	return fmt.Sprintf("/api/groups/%d%s", e.group.ID, suffix)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"No token", "", http.StatusUnauthorized},
		{"Wrong scheme", "Token abc", http.StatusUnauthorized},
		{"Unknown token", "Bearer nope", http.StatusUnauthorized},
		{"Valid token", "Bearer " + tokenFor(env.member), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := env.app.Test(req, -1)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestCheckPhone(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, "POST", "/api/auth/check-phone", nil, fiber.Map{"phone_number": env.member.PhoneNumber})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%v)", status, body)
	}
	if body["exists"] != true {
		t.Errorf("exists = %v, want true", body["exists"])
	}

	status, body = env.do(t, "POST", "/api/auth/check-phone", nil, fiber.Map{})
	if status != http.StatusBadRequest || body["error"] != "phone_required" {
		t.Errorf("empty phone: status = %d, error = %v", status, body["error"])
	}

	status, _ = env.do(t, "POST", "/api/auth/refresh-token", nil, fiber.Map{"refresh_token": "garbage"})
	if status != http.StatusUnauthorized {
		t.Errorf("refresh with garbage token: status = %d, want 401", status)
	}
}

func TestCreateGroupRequiresCapability(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, "POST", "/api/groups", env.member, fiber.Map{"name": "Sneaky tour"})
	if status != http.StatusForbidden {
		t.Errorf("member create: status = %d, want 403 (%v)", status, body)
	}

	status, body = env.do(t, "POST", "/api/groups", env.guide, fiber.Map{"name": "Evora day trip"})
	if status != http.StatusCreated {
		t.Fatalf("guide create: status = %d, want 201 (%v)", status, body)
	}
	group, _ := body["group"].(map[string]interface{})
	if group["name"] != "Evora day trip" {
		t.Errorf("group name = %v", group["name"])
	}

	status, body = env.do(t, "POST", "/api/groups", env.guide, fiber.Map{"name": "ab"})
	if status != http.StatusBadRequest || body["success"] != false {
		t.Errorf("short name: status = %d, body = %v", status, body)
	}
}

func TestInvitationFlow(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, "POST", env.groupPath("/invite"), env.guide, fiber.Map{"user_ids": []uint{env.outsider.ID}})
	if status != http.StatusCreated {
		t.Fatalf("invite: status = %d, want 201 (%v)", status, body)
	}
	env.notifications.Wait()

	// Route ordering: "invitations" must not be read as a group id.
	status, body = env.do(t, "GET", "/api/groups/invitations", env.outsider, nil)
	if status != http.StatusOK {
		t.Fatalf("list invitations: status = %d (%v)", status, body)
	}
	if invitations, _ := body["invitations"].([]interface{}); len(invitations) != 1 {
		t.Fatalf("invitations = %v, want 1", body["invitations"])
	}

	status, _ = env.do(t, "GET", env.groupPath(""), env.outsider, nil)
	if status != http.StatusForbidden {
		t.Errorf("before accept: status = %d, want 403", status)
	}

	path := fmt.Sprintf("/api/groups/invitations/%d/accept", env.group.ID)
	status, body = env.do(t, "POST", path, env.outsider, nil)
	if status != http.StatusOK {
		t.Fatalf("accept: status = %d (%v)", status, body)
	}

	status, _ = env.do(t, "GET", env.groupPath(""), env.outsider, nil)
	if status != http.StatusOK {
		t.Errorf("after accept: status = %d, want 200", status)
	}

	status, body = env.do(t, "POST", path, env.outsider, nil)
	if status != http.StatusNotFound {
		t.Errorf("second accept: status = %d, want 404 (%v)", status, body)
	}
}

func TestMembersIncludesInvitations(t *testing.T) {
	env := newTestEnv(t)
	if status, _ := env.do(t, "POST", env.groupPath("/invite"), env.guide, fiber.Map{"user_ids": []uint{env.outsider.ID}}); status != http.StatusCreated {
		t.Fatalf("invite status = %d", status)
	}
	env.notifications.Wait()

	status, body := env.do(t, "GET", env.groupPath("/members"), env.member, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d (%v)", status, body)
	}
	members, _ := body["members"].([]interface{})
	invitations, _ := body["invitations"].([]interface{})
	if len(members) != 1 || len(invitations) != 1 {
		t.Errorf("members = %d, invitations = %d, want 1 and 1", len(members), len(invitations))
	}
}

func TestSyncPullAndRead(t *testing.T) {
	env := newTestEnv(t)
	sentAt := time.Date(2026, 6, 2, 8, 30, 0, 0, time.UTC)
	batch := fiber.Map{"messages": []fiber.Map{
		{"local_message_id": "m-1", "group_id": env.group.ID, "content": "Meet at the pier", "sent_at": sentAt},
		{"local_message_id": "m-2", "group_id": env.group.ID, "content": "Boat leaves 9:15", "sent_at": sentAt.Add(time.Minute)},
	}}

	status, body := env.do(t, "POST", "/api/messages/sync", env.member, batch)
	if status != http.StatusOK {
		t.Fatalf("sync: status = %d (%v)", status, body)
	}
	status, _ = env.do(t, "POST", "/api/messages/sync", env.member, batch)
	if status != http.StatusOK {
		t.Fatalf("re-sync: status = %d", status)
	}
	if got := env.db.MessageCount(); got != 2 {
		t.Errorf("stored messages = %d, want 2 after re-sync", got)
	}

	status, body = env.do(t, "GET", env.groupPath("/messages?lastSyncTime=0"), env.guide, nil)
	if status != http.StatusOK {
		t.Fatalf("pull: status = %d (%v)", status, body)
	}
	messages, _ := body["messages"].([]interface{})
	if len(messages) != 2 {
		t.Fatalf("pulled %d messages, want 2", len(messages))
	}
	ids := make([]uint, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, uint(m.(map[string]interface{})["id"].(float64)))
	}

	status, body = env.do(t, "POST", "/api/messages/read", env.guide, fiber.Map{"group_id": env.group.ID, "message_ids": ids})
	if status != http.StatusOK {
		t.Fatalf("read: status = %d (%v)", status, body)
	}
	if body["marked"] != float64(2) {
		t.Errorf("marked = %v, want 2", body["marked"])
	}

	status, body = env.do(t, "GET", env.groupPath("/messages?lastSyncTime=yesterday"), env.guide, nil)
	if status != http.StatusBadRequest || body["error"] != "invalid_last_sync_time" {
		t.Errorf("bad lastSyncTime: status = %d, error = %v", status, body["error"])
	}

	cursor := sentAt.Add(time.Minute).UnixMilli()
	for _, query := range []string{"last_sync_time", "lastSyncTime"} {
		status, body = env.do(t, "GET", env.groupPath(fmt.Sprintf("/messages?%s=%d", query, cursor)), env.member, nil)
		if status != http.StatusOK || body["count"] != float64(0) {
			t.Errorf("%s at max sent_at: status = %d, count = %v, want 0", query, status, body["count"])
		}
	}
}

func TestCamelCaseBodiesAreRejected(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{"Sync", "/api/messages/sync", fiber.Map{"messages": []fiber.Map{
			{"localMessageId": "m-1", "groupId": env.group.ID, "content": "hi", "sentAt": time.Now()},
		}}},
		{"Read", "/api/messages/read", fiber.Map{"groupId": env.group.ID, "messageIds": []uint{1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, "POST", tt.path, env.member, tt.body)
			if status != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%v)", status, body)
			}
		})
	}
	if got := env.db.MessageCount(); got != 0 {
		t.Errorf("stored messages = %d, want 0", got)
	}
}

func TestGroupAccessErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		method   string
		path     string
		as       *models.User
		body     interface{}
		want     int
		wantCode string
	}{
		{"Outsider pull", "GET", env.groupPath("/messages"), env.outsider, nil, http.StatusForbidden, "group_forbidden"},
		{"Missing group", "GET", "/api/groups/9999", env.member, nil, http.StatusNotFound, "group_not_found"},
		{"Invalid id", "GET", "/api/groups/abc", env.member, nil, http.StatusBadRequest, "invalid_id"},
		{"Outsider sync", "POST", "/api/messages/sync", env.outsider, fiber.Map{"messages": []fiber.Map{
			{"local_message_id": "x", "group_id": env.group.ID, "content": "hi", "sent_at": time.Now()},
		}}, http.StatusForbidden, "group_forbidden"},
		{"Empty sync", "POST", "/api/messages/sync", env.member, fiber.Map{"messages": []fiber.Map{}}, http.StatusBadRequest, "messages_required"},
		{"Guide cannot leave", "POST", env.groupPath("/leave"), env.guide, nil, http.StatusForbidden, "guide_cannot_leave"},
		{"Member cannot delete", "DELETE", env.groupPath(""), env.member, nil, http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, tt.method, tt.path, tt.as, tt.body)
			if status != tt.want {
				t.Fatalf("status = %d, want %d (%v)", status, tt.want, body)
			}
			if body["success"] != false {
				t.Errorf("success = %v, want false", body["success"])
			}
			if tt.wantCode != "" && body["error"] != tt.wantCode {
				t.Errorf("error = %v, want %s", body["error"], tt.wantCode)
			}
			if body["request_id"] == "" || body["request_id"] == nil {
				t.Errorf("request_id missing from error envelope")
			}
		})
	}
}

func TestMediaWithoutStorage(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, "GET", fmt.Sprintf("/api/media/groups/%d/a.jpg", env.group.ID), env.member, nil)
	if status != http.StatusServiceUnavailable || body["error"] != "storage_not_configured" {
		t.Errorf("status = %d, error = %v, want 503 storage_not_configured", status, body["error"])
	}
}

func TestAdminConsole(t *testing.T) {
	env := newTestEnv(t)

	if status, _ := env.do(t, "GET", "/api/admin/users", env.guide, nil); status != http.StatusForbidden {
		t.Errorf("guide on admin console: status = %d, want 403", status)
	}

	status, body := env.do(t, "GET", "/api/admin/guides", env.admin, nil)
	if status != http.StatusOK {
		t.Fatalf("list guides: status = %d (%v)", status, body)
	}
	if guides, _ := body["guides"].([]interface{}); len(guides) != 1 {
		t.Errorf("guides = %v, want 1", body["guides"])
	}

	path := fmt.Sprintf("/api/admin/users/%d/status", env.outsider.ID)
	status, body = env.do(t, "PATCH", path, env.admin, fiber.Map{"status": "blocked"})
	if status != http.StatusBadRequest || body["error"] != "reason_required" {
		t.Errorf("block without reason: status = %d, error = %v", status, body["error"])
	}
	status, _ = env.do(t, "PATCH", path, env.admin, fiber.Map{"status": "blocked", "reason": "spam"})
	if status != http.StatusOK {
		t.Errorf("block: status = %d, want 200", status)
	}
	if u := env.db.User(env.outsider.ID); u.Status != models.UserBlocked {
		t.Errorf("outsider status = %s, want blocked", u.Status)
	}
}

func TestMaintenanceMode(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, "PUT", "/api/admin/settings/maintenance.mode", env.admin, fiber.Map{"value": true})
	if status != http.StatusOK {
		t.Fatalf("enable maintenance: status = %d (%v)", status, body)
	}

	if status, body = env.do(t, "GET", "/api/groups", env.member, nil); status != http.StatusServiceUnavailable {
		t.Errorf("member during maintenance: status = %d (%v), want 503", status, body)
	}
	if status, _ = env.do(t, "GET", "/api/groups", env.admin, nil); status != http.StatusOK {
		t.Errorf("admin during maintenance: status = %d, want 200", status)
	}
	if status, _ = env.do(t, "POST", "/api/auth/check-phone", nil, fiber.Map{"phone_number": "+351910000009"}); status != http.StatusOK {
		t.Errorf("auth during maintenance: status = %d, want 200", status)
	}
}

func TestNotifications(t *testing.T) {
	env := newTestEnv(t)
	if status, _ := env.do(t, "POST", env.groupPath("/invite"), env.guide, fiber.Map{"user_ids": []uint{env.outsider.ID}}); status != http.StatusCreated {
		t.Fatalf("invite status = %d", status)
	}
	env.notifications.Wait()

	status, body := env.do(t, "GET", "/api/notifications", env.outsider, nil)
	if status != http.StatusOK {
		t.Fatalf("list: status = %d (%v)", status, body)
	}
	list, _ := body["notifications"].([]interface{})
	if len(list) != 1 || body["unread"] != float64(1) {
		t.Fatalf("notifications = %v, unread = %v", body["notifications"], body["unread"])
	}
	id := uint(list[0].(map[string]interface{})["id"].(float64))

	if status, _ := env.do(t, "POST", fmt.Sprintf("/api/notifications/%d/read", id), env.member, nil); status != http.StatusNotFound {
		t.Errorf("foreign notification: status = %d, want 404", status)
	}
	if status, _ := env.do(t, "POST", fmt.Sprintf("/api/notifications/%d/read", id), env.outsider, nil); status != http.StatusOK {
		t.Errorf("own notification: status = %d, want 200", status)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, "GET", "/health", nil, nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("status = %d, body = %v", status, body)
	}
}

func TestParseLastSync(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *time.Time
		wantErr bool
	}{
		{"Empty", "", nil, false},
		{"Zero", "0", nil, false},
		{"Unix millis", "1780389000000", ptrTime(time.UnixMilli(1780389000000).UTC()), false},
		{"RFC3339", "2026-06-02T08:30:00Z", ptrTime(time.Date(2026, 6, 2, 8, 30, 0, 0, time.UTC)), false},
		{"RFC3339 nano", "2026-06-02T08:30:00.123456789Z", ptrTime(time.Date(2026, 6, 2, 8, 30, 0, 123456789, time.UTC)), false},
		{"Negative", "-5", nil, true},
		{"Garbage", "soon", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLastSync(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLastSync(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("parseLastSync(%q) = %v, want nil", tt.raw, got)
			case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
				t.Errorf("parseLastSync(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
