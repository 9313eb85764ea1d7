package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noteduco342/tourchat-backend/internal/access"
	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/metrics"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/repository"
	"github.com/noteduco342/tourchat-backend/internal/validation"
	"github.com/sirupsen/logrus"
)

// InvitationTTL is how long an invitation stays acceptable.
const InvitationTTL = 24 * time.Hour

type GroupService struct {
	groupRepo  repository.GroupRepositoryInterface
	inviteRepo repository.InvitationRepositoryInterface
	userRepo   repository.UserRepositoryInterface
	notifier   Notifier
	settings   *SettingsService
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewGroupService(
	groupRepo repository.GroupRepositoryInterface,
	inviteRepo repository.InvitationRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	notifier Notifier,
	settings *SettingsService,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) *GroupService {
	return &GroupService{
		groupRepo:  groupRepo,
		inviteRepo: inviteRepo,
		userRepo:   userRepo,
		notifier:   notifier,
		settings:   settings,
		metrics:    m,
		log:        log,
		now:        time.Now,
	}
}

type CreateGroupInput struct {
	Name        string     `json:"name" validate:"required,min=3,max=100"`
	Description string     `json:"description" validate:"max=500"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

func (s *GroupService) CreateGroup(guideID uint, role models.Role, input CreateGroupInput) (*models.TourGroup, error) {
	if !access.Can(role, access.GroupCreate) {
		return nil, apperr.Forbidden("insufficient_role", "Only guides can create groups")
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return nil, apperr.Validation("invalid_dates", "End date cannot be before start date")
	}

	group := &models.TourGroup{
		Name:        input.Name,
		Description: input.Description,
		GuideID:     guideID,
		IsActive:    true,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	}
	if err := s.groupRepo.Create(group); err != nil {
		return nil, apperr.Unexpected("group_create_failed", err)
	}
	s.log.WithFields(logrus.Fields{"group_id": group.ID, "guide_id": guideID}).Info("group created")

	return s.loadGroup(group.ID)
}

// loadGroup fetches a group with members and invitations.
func (s *GroupService) loadGroup(groupID uint) (*models.TourGroup, error) {
	group, err := s.groupRepo.FindByID(groupID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("group_not_found", "Group not found")
		}
		return nil, apperr.Unexpected("group_lookup_failed", err)
	}
	return group, nil
}

// loadAccessibleGroup loads a group and applies the access gate.
func (s *GroupService) loadAccessibleGroup(groupID, requesterID uint) (*models.TourGroup, error) {
	group, err := s.loadGroup(groupID)
	if err != nil {
		return nil, err
	}
	if !access.CanAccessGroup(requesterID, group) {
		return nil, apperr.Forbidden("group_forbidden", "Access denied")
	}
	return group, nil
}

func (s *GroupService) GetGroup(groupID, requesterID uint) (*models.TourGroup, error) {
	return s.loadAccessibleGroup(groupID, requesterID)
}

// ListMembers returns the group with its full membership history and
// invitations, gated like GetGroup.
func (s *GroupService) ListMembers(groupID, requesterID uint) (*models.TourGroup, error) {
	return s.loadAccessibleGroup(groupID, requesterID)
}

func (s *GroupService) ListGroupsForUser(userID uint) ([]models.TourGroup, error) {
	groups, err := s.groupRepo.ListForUser(userID)
	if err != nil {
		return nil, apperr.Unexpected("group_list_failed", err)
	}
	return groups, nil
}

func (s *GroupService) ListMyInvitations(userID uint) ([]models.GroupInvitation, error) {
	invitations, err := s.inviteRepo.ListPendingForUser(userID)
	if err != nil {
		return nil, apperr.Unexpected("invitation_list_failed", err)
	}
	return invitations, nil
}

// Invite appends one pending invitation per user. Only the group's guide may
// invite; for anyone else the group is reported as not found.
func (s *GroupService) Invite(groupID, inviterID uint, userIDs []uint) ([]models.GroupInvitation, error) {
	if len(userIDs) == 0 {
		return nil, apperr.Validation("user_ids_required", "userIds must be a non-empty array")
	}

	group, err := s.loadGroup(groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsActive || group.GuideID != inviterID {
		return nil, apperr.NotFound("group_not_found", "Group not found or you are not the guide")
	}

	invitees := make([]uint, 0, len(userIDs))
	seen := make(map[uint]bool, len(userIDs))
	for _, id := range userIDs {
		if id == 0 {
			return nil, apperr.Validation("invalid_user_id", "userIds must contain valid user ids")
		}
		if id == inviterID {
			return nil, apperr.Validation("cannot_invite_self", "The guide cannot invite themselves")
		}
		if !seen[id] {
			seen[id] = true
			invitees = append(invitees, id)
		}
	}

	found, err := s.userRepo.FindActiveIDs(invitees)
	if err != nil {
		return nil, apperr.Unexpected("user_lookup_failed", err)
	}
	if len(found) != len(invitees) {
		exists := make(map[uint]bool, len(found))
		for _, id := range found {
			exists[id] = true
		}
		var missing []string
		for _, id := range invitees {
			if !exists[id] {
				missing = append(missing, fmt.Sprint(id))
			}
		}
		return nil, apperr.Validation("users_not_found", "Users not found: "+strings.Join(missing, ", "))
	}

	maxMembers := s.settings.Int(SettingMaxGroupMembers, 100)
	if group.ActiveMemberCount()+len(invitees) > maxMembers {
		return nil, apperr.Validation("group_full", fmt.Sprintf("A group can have at most %d members", maxMembers))
	}

	now := s.now()
	invitations := make([]models.GroupInvitation, 0, len(invitees))
	for _, id := range invitees {
		invitations = append(invitations, models.GroupInvitation{
			GroupID:   groupID,
			UserID:    id,
			Status:    models.InvitationPending,
			InvitedAt: now,
			ExpiresAt: now.Add(InvitationTTL),
		})
	}
	if err := s.inviteRepo.CreateBatch(invitations); err != nil {
		return nil, apperr.Unexpected("invitation_create_failed", err)
	}
	for range invitees {
		s.metrics.Invitation("sent")
	}

	s.notify(invitees, "Group invitation",
		fmt.Sprintf("You have been invited to join %s", group.Name),
		models.NotifyInvitation, &group.ID)

	all, err := s.inviteRepo.ListByGroup(groupID)
	if err != nil {
		return nil, apperr.Unexpected("invitation_list_failed", err)
	}
	return all, nil
}

// AcceptInvitation acts on the user's most recent pending invitation. A
// lapsed invitation is persisted as expired before failing.
func (s *GroupService) AcceptInvitation(groupID, userID uint) (*models.TourGroup, error) {
	group, err := s.loadGroup(groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsActive {
		return nil, apperr.NotFound("group_not_found", "Group not found")
	}

	invitation, err := s.latestPending(groupID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if invitation.ExpiresAt.Before(now) {
		if err := s.inviteRepo.Transition(invitation.ID, models.InvitationPending, models.InvitationExpired, now); err != nil &&
			!errors.Is(err, repository.ErrStaleTransition) {
			return nil, apperr.Unexpected("invitation_expire_failed", err)
		}
		s.metrics.Invitation("expired")
		return nil, apperr.Expired("invitation_expired", "Invitation has expired")
	}

	if err := s.groupRepo.AcceptInvitation(invitation.ID, groupID, userID, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleTransition):
			return nil, apperr.InvalidState("invitation_not_pending", "Invitation is no longer pending")
		case repository.IsNotFound(err):
			return nil, apperr.NotFound("group_not_found", "Group not found")
		}
		return nil, apperr.Unexpected("invitation_accept_failed", err)
	}
	s.metrics.Invitation("accepted")
	s.log.WithFields(logrus.Fields{"group_id": groupID, "user_id": userID}).Info("invitation accepted")

	s.notify([]uint{group.GuideID}, "Invitation accepted",
		fmt.Sprintf("A traveller joined %s", group.Name),
		models.NotifyGroupUpdate, &group.ID)

	return s.loadGroup(groupID)
}

func (s *GroupService) RejectInvitation(groupID, userID uint) error {
	invitation, err := s.latestPending(groupID, userID)
	if err != nil {
		return err
	}
	if err := s.inviteRepo.Transition(invitation.ID, models.InvitationPending, models.InvitationRejected, s.now()); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return apperr.InvalidState("invitation_not_pending", "Invitation is no longer pending")
		}
		return apperr.Unexpected("invitation_reject_failed", err)
	}
	s.metrics.Invitation("rejected")
	return nil
}

func (s *GroupService) latestPending(groupID, userID uint) (*models.GroupInvitation, error) {
	invitation, err := s.inviteRepo.FindLatestPending(groupID, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("invitation_not_found", "No pending invitation found")
		}
		return nil, apperr.Unexpected("invitation_lookup_failed", err)
	}
	return invitation, nil
}

func (s *GroupService) Leave(groupID, userID uint) error {
	group, err := s.loadGroup(groupID)
	if err != nil {
		return err
	}
	if group.GuideID == userID {
		return apperr.Forbidden("guide_cannot_leave", "Guide cannot leave the group")
	}

	left, err := s.groupRepo.Leave(groupID, userID, s.now())
	if err != nil {
		return apperr.Unexpected("group_leave_failed", err)
	}
	if !left {
		return apperr.InvalidState("not_a_member", "You are not an active member of this group")
	}
	s.log.WithFields(logrus.Fields{"group_id": groupID, "user_id": userID}).Info("member left group")
	return nil
}

// DeleteGroup deactivates a group with no active members.
func (s *GroupService) DeleteGroup(groupID, actorID uint, actorRole models.Role) error {
	group, err := s.loadGroup(groupID)
	if err != nil {
		return err
	}
	if !group.IsActive {
		return apperr.NotFound("group_not_found", "Group not found")
	}
	if actorRole != models.RoleAdmin && group.GuideID != actorID {
		return apperr.Forbidden("group_forbidden", "Only the guide or an admin can delete this group")
	}
	if group.ActiveMemberCount() > 0 {
		return apperr.Conflict("group_has_members", "Cannot delete group with active members")
	}

	ok, err := s.groupRepo.Deactivate(groupID)
	if err != nil {
		return apperr.Unexpected("group_delete_failed", err)
	}
	if !ok {
		return apperr.Conflict("group_has_members", "Cannot delete group with active members")
	}
	s.log.WithFields(logrus.Fields{"group_id": groupID, "actor_id": actorID}).Info("group deactivated")

	s.notify([]uint{group.GuideID}, "Group deleted",
		fmt.Sprintf("%s has been deleted", group.Name),
		models.NotifyGroupUpdate, &group.ID)
	return nil
}

func (s *GroupService) notify(userIDs []uint, title, content string, typ models.NotificationType, groupID *uint) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(userIDs, title, content, typ, groupID)
}
