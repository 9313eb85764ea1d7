package service

import (
	"testing"
	"time"

	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/logger"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/repository"
	"github.com/noteduco342/tourchat-backend/internal/testutil"
)

func newAdminFixture(t *testing.T) (*AdminService, *testutil.MemoryDB, *models.User) {
	t.Helper()
	db := testutil.NewMemoryDB()
	logs := NewLogService(db.SystemLogs(), logger.Discard())
	svc := NewAdminService(db.Users(), db.Tokens(), logs, logger.Discard())
	admin := db.AddUser("+15553000001", models.RoleAdmin)
	return svc, db, admin
}

func TestListUsersPaging(t *testing.T) {
	svc, db, _ := newAdminFixture(t)
	for _, phone := range []string{"+15553000010", "+15553000011", "+15553000012"} {
		db.AddUser(phone, models.RoleGuide)
	}

	page, err := svc.ListUsers(repository.UserFilter{Page: repository.Page{Page: 2, Limit: 2}})
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if page.Total != 4 || page.Pages != 2 || len(page.Users) != 2 {
		t.Errorf("ListUsers() = total %d pages %d len %d, want 4/2/2", page.Total, page.Pages, len(page.Users))
	}

	guides, err := svc.ListGuides("", repository.Page{})
	if err != nil {
		t.Fatalf("ListGuides() error = %v", err)
	}
	if guides.Total != 3 || guides.Limit != 10 || guides.Page != 1 {
		t.Errorf("ListGuides() = %+v, want 3 guides with default paging", guides)
	}

	_, err = svc.ListUsers(repository.UserFilter{Role: "pilot"})
	assertKind(t, err, apperr.KindValidation)
}

func TestUpdateUserStatus(t *testing.T) {
	svc, db, admin := newAdminFixture(t)
	target := db.AddUser("+15553000020", models.RoleUser)
	if err := db.Tokens().Create(&models.RefreshToken{UserID: target.ID, TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		actor    uint
		target   uint
		status   models.UserStatus
		reason   string
		wantKind apperr.Kind
	}{
		{"Block without reason", admin.ID, target.ID, models.UserBlocked, " ", apperr.KindValidation},
		{"Unknown status", admin.ID, target.ID, "frozen", "x", apperr.KindValidation},
		{"Self update", admin.ID, admin.ID, models.UserBlocked, "x", apperr.KindValidation},
		{"Missing user", admin.ID, 9999, models.UserBlocked, "x", apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateUserStatus(tt.actor, tt.target, tt.status, tt.reason)
			assertKind(t, err, tt.wantKind)
		})
	}

	user, err := svc.UpdateUserStatus(admin.ID, target.ID, models.UserBlocked, "harassment")
	if err != nil {
		t.Fatalf("UpdateUserStatus() error = %v", err)
	}
	if user.Status != models.UserBlocked || db.User(target.ID).BlockReason != "harassment" {
		t.Errorf("user = %+v, want blocked with reason", user)
	}
	if _, err := db.Tokens().FindValidByHash("h1"); !repository.IsNotFound(err) {
		t.Errorf("refresh token still valid after block")
	}
	if logs := db.Logs(); len(logs) != 1 || logs[0].UserID == nil || *logs[0].UserID != admin.ID {
		t.Errorf("system logs = %+v, want one entry attributed to the admin", logs)
	}

	user, err = svc.UpdateUserStatus(admin.ID, target.ID, models.UserActive, "ignored")
	if err != nil {
		t.Fatalf("UpdateUserStatus(active) error = %v", err)
	}
	if user.BlockReason != "" {
		t.Errorf("BlockReason = %q, want cleared on unblock", user.BlockReason)
	}
}

func TestUpdateGuideStatusRequiresGuide(t *testing.T) {
	svc, db, admin := newAdminFixture(t)
	traveller := db.AddUser("+15553000030", models.RoleUser)
	guide := db.AddUser("+15553000031", models.RoleGuide)

	_, err := svc.UpdateGuideStatus(admin.ID, traveller.ID, models.UserBlocked, "x")
	assertKind(t, err, apperr.KindNotFound)

	if _, err := svc.UpdateGuideStatus(admin.ID, guide.ID, models.UserBlocked, "no licence"); err != nil {
		t.Errorf("UpdateGuideStatus() error = %v", err)
	}
}

func TestUpdateUserRole(t *testing.T) {
	svc, db, admin := newAdminFixture(t)
	target := db.AddUser("+15553000040", models.RoleUser)

	_, err := svc.UpdateUserRole(admin.ID, target.ID, "captain")
	assertKind(t, err, apperr.KindValidation)
	_, err = svc.UpdateUserRole(admin.ID, admin.ID, models.RoleUser)
	assertKind(t, err, apperr.KindValidation)

	user, err := svc.UpdateUserRole(admin.ID, target.ID, models.RoleGuide)
	if err != nil {
		t.Fatalf("UpdateUserRole() error = %v", err)
	}
	if user.Role != models.RoleGuide || db.User(target.ID).Role != models.RoleGuide {
		t.Errorf("role = %s, want guide", user.Role)
	}
}
