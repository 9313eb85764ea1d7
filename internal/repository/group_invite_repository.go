package repository

import (
	"time"

	"github.com/noteduco342/tourchat-backend/internal/models"
	"gorm.io/gorm"
)

type InvitationRepository struct {
	db *gorm.DB
}

func NewInvitationRepository(db *gorm.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// CreateBatch appends invitations. Earlier invitations for the same user are
// never touched.
func (r *InvitationRepository) CreateBatch(invitations []models.GroupInvitation) error {
	if len(invitations) == 0 {
		return nil
	}
	return r.db.Create(&invitations).Error
}

func (r *InvitationRepository) ListByGroup(groupID uint) ([]models.GroupInvitation, error) {
	var invitations []models.GroupInvitation
	err := r.db.Where("group_id = ?", groupID).Order("id ASC").Find(&invitations).Error
	return invitations, err
}

// FindLatestPending returns the most recently created pending invitation.
func (r *InvitationRepository) FindLatestPending(groupID, userID uint) (*models.GroupInvitation, error) {
	var invitation models.GroupInvitation
	err := r.db.Where("group_id = ? AND user_id = ? AND status = ?", groupID, userID, models.InvitationPending).
		Order("invited_at DESC, id DESC").
		First(&invitation).Error
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *InvitationRepository) ListPendingForUser(userID uint) ([]models.GroupInvitation, error) {
	var invitations []models.GroupInvitation
	err := r.db.Joins("JOIN tour_groups ON tour_groups.id = group_invitations.group_id AND tour_groups.is_active = ?", true).
		Where("group_invitations.user_id = ? AND group_invitations.status = ?", userID, models.InvitationPending).
		Preload("Group").
		Order("group_invitations.invited_at DESC, group_invitations.id DESC").
		Find(&invitations).Error
	return invitations, err
}

// Transition is a compare-and-set on status. It returns ErrStaleTransition
// when the invitation was not in from.
func (r *InvitationRepository) Transition(id uint, from, to models.InvitationStatus, at time.Time) error {
	res := r.db.Model(&models.GroupInvitation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":       to,
			"responded_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// ExpireStale moves every pending invitation past its expiry to expired.
func (r *InvitationRepository) ExpireStale(now time.Time) (int64, error) {
	res := r.db.Model(&models.GroupInvitation{}).
		Where("status = ? AND expires_at < ?", models.InvitationPending, now).
		Update("status", models.InvitationExpired)
	return res.RowsAffected, res.Error
}
