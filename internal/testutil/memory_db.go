package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/repository"
	"gorm.io/gorm"
)

// MemoryDB is an in-memory stand-in for the Postgres schema. The mock
// repositories share it so cross-table operations (accept, deactivate) see
// one consistent state. All access is serialized.
type MemoryDB struct {
	mu sync.Mutex

	users         map[uint]*models.User
	groups        map[uint]*models.TourGroup
	members       []models.GroupMember
	invitations   []models.GroupInvitation
	messages      []models.Message
	reads         []models.MessageRead
	tokens        map[string]*models.RefreshToken
	notifications []models.Notification
	logs          []models.SystemLog
	settings      map[string]models.SystemSetting

	nextID uint

	// FailWith, when set, is returned by every repository call.
	FailWith error
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:    make(map[uint]*models.User),
		groups:   make(map[uint]*models.TourGroup),
		tokens:   make(map[string]*models.RefreshToken),
		settings: make(map[string]models.SystemSetting),
	}
}

func (db *MemoryDB) id() uint {
	db.nextID++
	return db.nextID
}

// Seeding helpers

func (db *MemoryDB) AddUser(phone string, role models.Role) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := &models.User{
		ID:          db.id(),
		PhoneNumber: phone,
		FirstName:   "User",
		LastName:    phone,
		Role:        role,
		Status:      models.UserActive,
		IsVerified:  true,
		CreatedAt:   time.Now(),
	}
	db.users[u.ID] = u
	cp := *u
	return &cp
}

func (db *MemoryDB) AddGroup(guideID uint, name string) *models.TourGroup {
	db.mu.Lock()
	defer db.mu.Unlock()
	g := &models.TourGroup{ID: db.id(), Name: name, GuideID: guideID, IsActive: true, CreatedAt: time.Now()}
	db.groups[g.ID] = g
	return db.assembleGroup(g.ID)
}

func (db *MemoryDB) AddMember(groupID, userID uint, status models.MemberStatus) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.members = append(db.members, models.GroupMember{
		ID: db.id(), GroupID: groupID, UserID: userID, Status: status, JoinedAt: time.Now(),
	})
}

func (db *MemoryDB) AddInvitation(inv models.GroupInvitation) models.GroupInvitation {
	db.mu.Lock()
	defer db.mu.Unlock()
	inv.ID = db.id()
	db.invitations = append(db.invitations, inv)
	return inv
}

func (db *MemoryDB) SetSetting(key string, value interface{}) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.settings[key] = models.SystemSetting{Key: key, Value: map[string]interface{}{"value": value}}
}

// Inspection helpers

func (db *MemoryDB) Group(id uint) *models.TourGroup {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.assembleGroup(id)
}

func (db *MemoryDB) User(id uint) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u, ok := db.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (db *MemoryDB) Invitation(id uint) *models.GroupInvitation {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range db.invitations {
		if db.invitations[i].ID == id {
			cp := db.invitations[i]
			return &cp
		}
	}
	return nil
}

func (db *MemoryDB) MessageCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.messages)
}

func (db *MemoryDB) Notifications() []models.Notification {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]models.Notification(nil), db.notifications...)
}

func (db *MemoryDB) Logs() []models.SystemLog {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]models.SystemLog(nil), db.logs...)
}

// assembleGroup builds a detached copy with associations, as FindByID would.
// Caller holds mu.
func (db *MemoryDB) assembleGroup(id uint) *models.TourGroup {
	g, ok := db.groups[id]
	if !ok {
		return nil
	}
	cp := *g
	if guide, ok := db.users[g.GuideID]; ok {
		cp.Guide = *guide
	}
	cp.Members = nil
	for _, m := range db.members {
		if m.GroupID == id {
			if u, ok := db.users[m.UserID]; ok {
				m.User = *u
			}
			cp.Members = append(cp.Members, m)
		}
	}
	cp.Invitations = nil
	for _, inv := range db.invitations {
		if inv.GroupID == id {
			cp.Invitations = append(cp.Invitations, inv)
		}
	}
	return &cp
}

func (db *MemoryDB) messageWithAssociations(m models.Message) models.Message {
	if u, ok := db.users[m.SenderID]; ok {
		m.Sender = *u
	}
	m.Reads = nil
	for _, r := range db.reads {
		if r.MessageID == m.ID {
			m.Reads = append(m.Reads, r)
		}
	}
	return m
}

// Repositories

func (db *MemoryDB) Users() *MockUserRepository                 { return &MockUserRepository{db} }
func (db *MemoryDB) Tokens() *MockRefreshTokenRepository        { return &MockRefreshTokenRepository{db} }
func (db *MemoryDB) Groups() *MockGroupRepository               { return &MockGroupRepository{db} }
func (db *MemoryDB) Invitations() *MockInvitationRepository     { return &MockInvitationRepository{db} }
func (db *MemoryDB) Messages() *MockMessageRepository           { return &MockMessageRepository{db} }
func (db *MemoryDB) NotificationRepo() *MockNotificationRepository {
	return &MockNotificationRepository{db}
}
func (db *MemoryDB) SystemLogs() *MockSystemLogRepository { return &MockSystemLogRepository{db} }
func (db *MemoryDB) Settings() *MockSettingRepository     { return &MockSettingRepository{db} }

var (
	_ repository.UserRepositoryInterface         = (*MockUserRepository)(nil)
	_ repository.RefreshTokenRepositoryInterface = (*MockRefreshTokenRepository)(nil)
	_ repository.GroupRepositoryInterface        = (*MockGroupRepository)(nil)
	_ repository.InvitationRepositoryInterface   = (*MockInvitationRepository)(nil)
	_ repository.MessageRepositoryInterface      = (*MockMessageRepository)(nil)
	_ repository.NotificationRepositoryInterface = (*MockNotificationRepository)(nil)
	_ repository.SystemLogRepositoryInterface    = (*MockSystemLogRepository)(nil)
	_ repository.SettingRepositoryInterface      = (*MockSettingRepository)(nil)
)

// MockUserRepository implements repository.UserRepositoryInterface.
type MockUserRepository struct{ db *MemoryDB }

func (m *MockUserRepository) Create(user *models.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return m.db.FailWith
	}
	for _, u := range m.db.users {
		if u.PhoneNumber == user.PhoneNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	user.ID = m.db.id()
	user.CreatedAt = time.Now()
	cp := *user
	m.db.users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) FindByPhone(phone string) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return nil, m.db.FailWith
	}
	for _, u := range m.db.users {
		if u.PhoneNumber == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) FindByID(id uint) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return nil, m.db.FailWith
	}
	if u, ok := m.db.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) FindActiveIDs(ids []uint) ([]uint, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []uint
	for _, id := range ids {
		if u, ok := m.db.users[id]; ok && u.Status == models.UserActive {
			out = append(out, id)
		}
	}
	return out, m.db.FailWith
}

func (m *MockUserRepository) Update(user *models.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return m.db.FailWith
	}
	cp := *user
	m.db.users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) UpdateStatus(id uint, status models.UserStatus, reason string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return false, m.db.FailWith
	}
	u.Status = status
	u.BlockReason = reason
	return true, m.db.FailWith
}

func (m *MockUserRepository) UpdateRole(id uint, role models.Role) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return false, m.db.FailWith
	}
	u.Role = role
	return true, m.db.FailWith
}

func (m *MockUserRepository) List(filter repository.UserFilter) ([]models.User, int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var matched []models.User
	for _, u := range m.db.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		matched = append(matched, *u)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	start := filter.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if filter.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, m.db.FailWith
}

// MockRefreshTokenRepository implements repository.RefreshTokenRepositoryInterface.
type MockRefreshTokenRepository struct{ db *MemoryDB }

func (m *MockRefreshTokenRepository) Create(token *models.RefreshToken) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return m.db.FailWith
	}
	token.ID = m.db.id()
	cp := *token
	m.db.tokens[token.TokenHash] = &cp
	return nil
}

func (m *MockRefreshTokenRepository) FindValidByHash(hash string) (*models.RefreshToken, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.tokens[hash]
	if !ok || !t.IsUsable(time.Now()) {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockRefreshTokenRepository) RevokeByHash(hash string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.tokens[hash]
	if !ok || t.IsRevoked() {
		return false, nil
	}
	now := time.Now()
	t.RevokedAt = &now
	return true, nil
}

func (m *MockRefreshTokenRepository) RevokeAllForUser(userID uint) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	now := time.Now()
	for _, t := range m.db.tokens {
		if t.UserID == userID && !t.IsRevoked() {
			t.RevokedAt = &now
		}
	}
	return nil
}

// MockGroupRepository implements repository.GroupRepositoryInterface.
type MockGroupRepository struct{ db *MemoryDB }

func (m *MockGroupRepository) Create(group *models.TourGroup) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return m.db.FailWith
	}
	group.ID = m.db.id()
	group.CreatedAt = time.Now()
	cp := *group
	m.db.groups[group.ID] = &cp
	return nil
}

func (m *MockGroupRepository) FindByID(id uint) (*models.TourGroup, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return nil, m.db.FailWith
	}
	g := m.db.assembleGroup(id)
	if g == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return g, nil
}

func (m *MockGroupRepository) ListForUser(userID uint) ([]models.TourGroup, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.TourGroup
	for id, g := range m.db.groups {
		if !g.IsActive {
			continue
		}
		full := m.db.assembleGroup(id)
		if full.GuideID == userID || hasActive(full.Members, userID) {
			out = append(out, *full)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, m.db.FailWith
}

func hasActive(members []models.GroupMember, userID uint) bool {
	for _, mem := range members {
		if mem.UserID == userID && mem.Status == models.MemberActive {
			return true
		}
	}
	return false
}

func (m *MockGroupRepository) AcceptInvitation(invitationID, groupID, userID uint, at time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return m.db.FailWith
	}
	g, ok := m.db.groups[groupID]
	if !ok || !g.IsActive {
		return gorm.ErrRecordNotFound
	}
	var inv *models.GroupInvitation
	for i := range m.db.invitations {
		if m.db.invitations[i].ID == invitationID {
			inv = &m.db.invitations[i]
		}
	}
	if inv == nil || inv.Status != models.InvitationPending {
		return repository.ErrStaleTransition
	}
	inv.Status = models.InvitationAccepted
	inv.RespondedAt = &at

	for _, mem := range m.db.members {
		if mem.GroupID == groupID && mem.UserID == userID && mem.Status == models.MemberActive {
			return nil
		}
	}
	m.db.members = append(m.db.members, models.GroupMember{
		ID: m.db.id(), GroupID: groupID, UserID: userID, Status: models.MemberActive, JoinedAt: at,
	})
	return nil
}

func (m *MockGroupRepository) Leave(groupID, userID uint, at time.Time) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return false, m.db.FailWith
	}
	for i := range m.db.members {
		mem := &m.db.members[i]
		if mem.GroupID == groupID && mem.UserID == userID && mem.Status == models.MemberActive {
			mem.Status = models.MemberLeft
			mem.LeftAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (m *MockGroupRepository) Deactivate(groupID uint) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return false, m.db.FailWith
	}
	g, ok := m.db.groups[groupID]
	if !ok || !g.IsActive {
		return false, nil
	}
	for _, mem := range m.db.members {
		if mem.GroupID == groupID && mem.Status == models.MemberActive {
			return false, nil
		}
	}
	g.IsActive = false
	return true, nil
}

// MockInvitationRepository implements repository.InvitationRepositoryInterface.
type MockInvitationRepository struct{ db *MemoryDB }

func (m *MockInvitationRepository) CreateBatch(invitations []models.GroupInvitation) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return m.db.FailWith
	}
	for _, inv := range invitations {
		inv.ID = m.db.id()
		m.db.invitations = append(m.db.invitations, inv)
	}
	return nil
}

func (m *MockInvitationRepository) ListByGroup(groupID uint) ([]models.GroupInvitation, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.GroupInvitation
	for _, inv := range m.db.invitations {
		if inv.GroupID == groupID {
			out = append(out, inv)
		}
	}
	return out, m.db.FailWith
}

func (m *MockInvitationRepository) FindLatestPending(groupID, userID uint) (*models.GroupInvitation, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return nil, m.db.FailWith
	}
	var latest *models.GroupInvitation
	for i := range m.db.invitations {
		inv := m.db.invitations[i]
		if inv.GroupID != groupID || inv.UserID != userID || inv.Status != models.InvitationPending {
			continue
		}
		if latest == nil || inv.InvitedAt.After(latest.InvitedAt) ||
			(inv.InvitedAt.Equal(latest.InvitedAt) && inv.ID > latest.ID) {
			cp := inv
			latest = &cp
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (m *MockInvitationRepository) ListPendingForUser(userID uint) ([]models.GroupInvitation, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.GroupInvitation
	for i := len(m.db.invitations) - 1; i >= 0; i-- {
		inv := m.db.invitations[i]
		g, ok := m.db.groups[inv.GroupID]
		if inv.UserID != userID || inv.Status != models.InvitationPending || !ok || !g.IsActive {
			continue
		}
		gcp := *g
		inv.Group = &gcp
		out = append(out, inv)
	}
	return out, m.db.FailWith
}

func (m *MockInvitationRepository) Transition(id uint, from, to models.InvitationStatus, at time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return m.db.FailWith
	}
	for i := range m.db.invitations {
		inv := &m.db.invitations[i]
		if inv.ID == id && inv.Status == from {
			inv.Status = to
			inv.RespondedAt = &at
			return nil
		}
	}
	return repository.ErrStaleTransition
}

func (m *MockInvitationRepository) ExpireStale(now time.Time) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	for i := range m.db.invitations {
		inv := &m.db.invitations[i]
		if inv.Status == models.InvitationPending && inv.ExpiresAt.Before(now) {
			inv.Status = models.InvitationExpired
			n++
		}
	}
	return n, m.db.FailWith
}

// MockMessageRepository implements repository.MessageRepositoryInterface. The
// (local id, sender) uniqueness check runs under the store lock, like the
// unique index it stands in for.
type MockMessageRepository struct{ db *MemoryDB }

func (m *MockMessageRepository) InsertBatchIdempotent(senderID uint, messages []models.Message) ([]models.Message, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return nil, 0, m.db.FailWith
	}

	find := func(localID string) (models.Message, bool) {
		for _, existing := range m.db.messages {
			if existing.SenderID == senderID && existing.LocalMessageID == localID {
				return existing, true
			}
		}
		return models.Message{}, false
	}

	inserted := 0
	out := make([]models.Message, 0, len(messages))
	for _, msg := range messages {
		if existing, ok := find(msg.LocalMessageID); ok {
			out = append(out, m.db.messageWithAssociations(existing))
			continue
		}
		msg.ID = m.db.id()
		msg.SenderID = senderID
		m.db.messages = append(m.db.messages, msg)
		inserted++
		out = append(out, m.db.messageWithAssociations(msg))
	}
	return out, inserted, nil
}

func (m *MockMessageRepository) FindGroupMessagesSince(groupID uint, since *time.Time) ([]models.Message, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return nil, m.db.FailWith
	}
	var out []models.Message
	for _, msg := range m.db.messages {
		if msg.GroupID != groupID {
			continue
		}
		if since != nil && !msg.SentAt.After(*since) {
			continue
		}
		out = append(out, m.db.messageWithAssociations(msg))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SentAt.Before(out[j].SentAt)
	})
	return out, nil
}

func (m *MockMessageRepository) MarkRead(groupID, readerID uint, messageIDs []uint, at time.Time) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return 0, m.db.FailWith
	}
	want := make(map[uint]bool, len(messageIDs))
	for _, id := range messageIDs {
		want[id] = true
	}
	n := 0
	for i := range m.db.messages {
		msg := &m.db.messages[i]
		if !want[msg.ID] || msg.GroupID != groupID || msg.SenderID == readerID {
			continue
		}
		msg.Status = models.StatusRead
		readAt := at
		msg.ReadAt = &readAt
		already := false
		for _, r := range m.db.reads {
			if r.MessageID == msg.ID && r.UserID == readerID {
				already = true
			}
		}
		if !already {
			m.db.reads = append(m.db.reads, models.MessageRead{MessageID: msg.ID, UserID: readerID, ReadAt: at})
		}
		n++
	}
	return n, nil
}

// MockNotificationRepository implements repository.NotificationRepositoryInterface.
type MockNotificationRepository struct{ db *MemoryDB }

func (m *MockNotificationRepository) CreateBatch(notifications []models.Notification) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return m.db.FailWith
	}
	for i := range notifications {
		notifications[i].ID = m.db.id()
		notifications[i].CreatedAt = time.Now()
		m.db.notifications = append(m.db.notifications, notifications[i])
	}
	return nil
}

func (m *MockNotificationRepository) ListForUser(userID uint, now time.Time, limit int) ([]models.Notification, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Notification
	for i := len(m.db.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		n := m.db.notifications[i]
		if n.RecipientID == userID && n.ExpiresAt.After(now) {
			out = append(out, n)
		}
	}
	return out, m.db.FailWith
}

func (m *MockNotificationRepository) CountUnread(userID uint, now time.Time) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var c int64
	for _, n := range m.db.notifications {
		if n.RecipientID == userID && !n.IsRead && n.ExpiresAt.After(now) {
			c++
		}
	}
	return c, m.db.FailWith
}

func (m *MockNotificationRepository) MarkRead(id, userID uint) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for i := range m.db.notifications {
		n := &m.db.notifications[i]
		if n.ID == id && n.RecipientID == userID {
			n.IsRead = true
			return true, m.db.FailWith
		}
	}
	return false, m.db.FailWith
}

func (m *MockNotificationRepository) DeleteExpired(now time.Time) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	kept := m.db.notifications[:0]
	var n int64
	for _, nt := range m.db.notifications {
		if nt.ExpiresAt.After(now) {
			kept = append(kept, nt)
		} else {
			n++
		}
	}
	m.db.notifications = kept
	return n, m.db.FailWith
}

// MockSystemLogRepository implements repository.SystemLogRepositoryInterface.
type MockSystemLogRepository struct{ db *MemoryDB }

func (m *MockSystemLogRepository) Create(entry *models.SystemLog) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailWith != nil {
		return m.db.FailWith
	}
	entry.ID = m.db.id()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.db.logs = append(m.db.logs, *entry)
	return nil
}

func (m *MockSystemLogRepository) List(filter repository.LogFilter) ([]models.SystemLog, int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var matched []models.SystemLog
	for i := len(m.db.logs) - 1; i >= 0; i-- {
		l := m.db.logs[i]
		if filter.Level != "" && l.Level != filter.Level {
			continue
		}
		if filter.Category != "" && l.Category != filter.Category {
			continue
		}
		if filter.Resolved != nil && l.Resolved != *filter.Resolved {
			continue
		}
		matched = append(matched, l)
	}
	total := int64(len(matched))
	start := filter.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if filter.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, m.db.FailWith
}

func (m *MockSystemLogRepository) Resolve(id, resolvedBy uint, resolution string, at time.Time) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for i := range m.db.logs {
		l := &m.db.logs[i]
		if l.ID == id {
			l.Resolved = true
			l.ResolvedBy = &resolvedBy
			l.ResolvedAt = &at
			l.Resolution = resolution
			return true, m.db.FailWith
		}
	}
	return false, m.db.FailWith
}

func (m *MockSystemLogRepository) DeleteRoutineBefore(cutoff time.Time) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	kept := m.db.logs[:0]
	var n int64
	for _, l := range m.db.logs {
		routine := l.Level == models.LevelInfo || l.Level == models.LevelWarning
		if routine && l.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	m.db.logs = kept
	return n, m.db.FailWith
}

// MockSettingRepository implements repository.SettingRepositoryInterface.
type MockSettingRepository struct{ db *MemoryDB }

func (m *MockSettingRepository) List() ([]models.SystemSetting, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]models.SystemSetting, 0, len(m.db.settings))
	for _, s := range m.db.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, m.db.FailWith
}

func (m *MockSettingRepository) Get(key string) (*models.SystemSetting, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.settings[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (m *MockSettingRepository) Upsert(setting *models.SystemSetting) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.settings[setting.Key] = *setting
	return m.db.FailWith
}

func (m *MockSettingRepository) CreateIfMissing(setting *models.SystemSetting) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.settings[setting.Key]; !ok {
		m.db.settings[setting.Key] = *setting
	}
	return m.db.FailWith
}
