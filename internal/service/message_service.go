package service

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/noteduco342/tourchat-backend/internal/access"
	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/cache"
	"github.com/noteduco342/tourchat-backend/internal/metrics"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/repository"
	"github.com/noteduco342/tourchat-backend/internal/validation"
	"github.com/sirupsen/logrus"
)

const EventMessagesSynced = "messages.synced"

type MessageService struct {
	messageRepo repository.MessageRepositoryInterface
	groupRepo   repository.GroupRepositoryInterface
	cache       *cache.MessageCache
	settings    *SettingsService
	metrics     *metrics.Metrics
	log         logrus.FieldLogger
	now         func() time.Time
	pusher      Pusher
}

func NewMessageService(
	messageRepo repository.MessageRepositoryInterface,
	groupRepo repository.GroupRepositoryInterface,
	messageCache *cache.MessageCache,
	settings *SettingsService,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		groupRepo:   groupRepo,
		cache:       messageCache,
		settings:    settings,
		metrics:     m,
		log:         log,
		now:         time.Now,
	}
}

// SetPusher enables live fan-out of synced messages to online members.
func (s *MessageService) SetPusher(p Pusher) {
	s.pusher = p
}

// SyncMessageInput is one client-side message in a sync batch.
type SyncMessageInput struct {
	LocalMessageID string                 `json:"local_message_id" validate:"required,max=64"`
	GroupID        uint                   `json:"group_id" validate:"required"`
	Content        string                 `json:"content" validate:"required"`
	Type           models.MessageType     `json:"type" validate:"omitempty,oneof=text image location file"`
	SentAt         *time.Time             `json:"sent_at" validate:"required"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func (s *MessageService) validateBatch(inputs []SyncMessageInput) error {
	if len(inputs) == 0 {
		return apperr.Validation("messages_required", "messages must be a non-empty array")
	}
	if limit := s.settings.Int(SettingMessageBatchSize, 50); len(inputs) > limit {
		return apperr.Validation("batch_too_large", fmt.Sprintf("At most %d messages per sync", limit))
	}

	maxLen := validation.MaxMessageLength()
	for i := range inputs {
		in := &inputs[i]
		in.LocalMessageID = strings.TrimSpace(in.LocalMessageID)
		in.Content = strings.TrimSpace(in.Content)
		if err := validation.Struct(*in); err != nil {
			e, _ := apperr.As(err)
			return apperr.Validation(e.Code, fmt.Sprintf("messages[%d]: %s", i, e.Message))
		}
		if utf8.RuneCountInString(in.Content) > maxLen {
			return apperr.Validation("content_too_long", fmt.Sprintf("messages[%d]: content exceeds %d characters", i, maxLen))
		}
		if in.Type == "" {
			in.Type = models.TextMessage
		}
	}
	return nil
}

// SyncBatch stores a batch of client messages idempotently. Every referenced
// group is checked before anything is written; the first inaccessible group
// fails the whole batch. Records come back in submission order, including
// ones that already existed.
func (s *MessageService) SyncBatch(senderID uint, inputs []SyncMessageInput) ([]models.Message, error) {
	if err := s.validateBatch(inputs); err != nil {
		return nil, err
	}

	groups := make(map[uint]*models.TourGroup)
	var order []uint
	for _, in := range inputs {
		if _, ok := groups[in.GroupID]; ok {
			continue
		}
		group, err := s.groupRepo.FindByID(in.GroupID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, apperr.NotFound("group_not_found", fmt.Sprintf("Group %d not found", in.GroupID))
			}
			return nil, apperr.Unexpected("group_lookup_failed", err)
		}
		if !access.CanAccessGroup(senderID, group) {
			return nil, apperr.Forbidden("group_forbidden", fmt.Sprintf("You do not have access to group %d", in.GroupID))
		}
		groups[in.GroupID] = group
		order = append(order, in.GroupID)
	}

	now := s.now()
	messages := make([]models.Message, 0, len(inputs))
	for _, in := range inputs {
		messages = append(messages, models.Message{
			LocalMessageID: in.LocalMessageID,
			SenderID:       senderID,
			GroupID:        in.GroupID,
			Content:        in.Content,
			Type:           in.Type,
			Status:         models.StatusSent,
			SentAt:         in.SentAt.UTC().Truncate(time.Millisecond),
			SyncedAt:       now,
			Metadata:       in.Metadata,
		})
	}

	stored, inserted, err := s.messageRepo.InsertBatchIdempotent(senderID, messages)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperr.Conflict("duplicate_message", "Message already synced")
		}
		return nil, apperr.Unexpected("sync_failed", err)
	}

	s.metrics.Synced(inserted, len(inputs)-inserted)
	s.log.WithFields(logrus.Fields{
		"sender_id":   senderID,
		"submitted":   len(inputs),
		"inserted":    inserted,
		"group_count": len(order),
	}).Debug("sync batch stored")

	if inserted > 0 {
		for _, gid := range order {
			if err := s.cache.InvalidateGroup(gid); err != nil {
				s.log.WithError(err).WithField("group_id", gid).Warn("failed to invalidate pull cache")
			}
		}
		s.fanOut(senderID, order, groups, stored)
	}
	return stored, nil
}

func (s *MessageService) fanOut(senderID uint, order []uint, groups map[uint]*models.TourGroup, stored []models.Message) {
	if s.pusher == nil {
		return
	}
	byGroup := make(map[uint][]models.MessageResponse)
	for i := range stored {
		byGroup[stored[i].GroupID] = append(byGroup[stored[i].GroupID], stored[i].ToResponse())
	}
	for _, gid := range order {
		payload := map[string]interface{}{"group_id": gid, "messages": byGroup[gid]}
		for _, uid := range recipients(groups[gid], senderID) {
			s.pusher.PushToUser(uid, EventMessagesSynced, payload)
		}
	}
}

// recipients lists the guide and active members other than exclude.
func recipients(g *models.TourGroup, exclude uint) []uint {
	var ids []uint
	if g.GuideID != exclude {
		ids = append(ids, g.GuideID)
	}
	for i := range g.Members {
		m := g.Members[i]
		if m.Status == models.MemberActive && m.UserID != exclude && m.UserID != g.GuideID {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// Pull returns group messages sent strictly after since (all when nil),
// ordered by sentAt then id.
func (s *MessageService) Pull(groupID, requesterID uint, since *time.Time) ([]models.MessageResponse, error) {
	group, err := s.groupRepo.FindByID(groupID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("group_not_found", "Group not found")
		}
		return nil, apperr.Unexpected("group_lookup_failed", err)
	}
	if !access.CanAccessGroup(requesterID, group) {
		return nil, apperr.Forbidden("group_forbidden", "Access denied")
	}

	if cached, ok := s.cache.GetGroupPull(groupID, since); ok {
		return cached, nil
	}
	version := s.cache.GroupVersion(groupID)

	messages, err := s.messageRepo.FindGroupMessagesSince(groupID, since)
	if err != nil {
		return nil, apperr.Unexpected("pull_failed", err)
	}
	out := make([]models.MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, messages[i].ToResponse())
	}

	if err := s.cache.SetGroupPull(groupID, version, since, out); err != nil {
		s.log.WithError(err).WithField("group_id", groupID).Warn("failed to cache pull result")
	}
	return out, nil
}

// MarkRead records the requester as a reader of the listed messages. Ids
// outside the group or authored by the requester are skipped.
func (s *MessageService) MarkRead(groupID, requesterID uint, messageIDs []uint) (time.Time, int, error) {
	if len(messageIDs) == 0 {
		return time.Time{}, 0, apperr.Validation("message_ids_required", "messageIds must be a non-empty array")
	}

	group, err := s.groupRepo.FindByID(groupID)
	if err != nil {
		if repository.IsNotFound(err) {
			return time.Time{}, 0, apperr.NotFound("group_not_found", "Group not found")
		}
		return time.Time{}, 0, apperr.Unexpected("group_lookup_failed", err)
	}
	if !access.CanAccessGroup(requesterID, group) {
		return time.Time{}, 0, apperr.Forbidden("group_forbidden", "Access denied")
	}

	ids := make([]uint, 0, len(messageIDs))
	seen := make(map[uint]bool, len(messageIDs))
	for _, id := range messageIDs {
		if id != 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	readAt := s.now()
	if len(ids) == 0 {
		return readAt, 0, nil
	}
	n, err := s.messageRepo.MarkRead(groupID, requesterID, ids, readAt)
	if err != nil {
		return time.Time{}, 0, apperr.Unexpected("mark_read_failed", err)
	}
	if n > 0 {
		s.metrics.Read(n)
		if err := s.cache.InvalidateGroup(groupID); err != nil {
			s.log.WithError(err).WithField("group_id", groupID).Warn("failed to invalidate pull cache")
		}
	}
	return readAt, n, nil
}
