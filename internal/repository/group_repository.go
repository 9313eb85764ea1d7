package repository

import (
	"errors"
	"time"

	"github.com/noteduco342/tourchat-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) Create(group *models.TourGroup) error {
	return r.db.Create(group).Error
}

// FindByID loads a group with its guide, membership history and invitations,
// each ordered by insertion.
func (r *GroupRepository) FindByID(id uint) (*models.TourGroup, error) {
	var group models.TourGroup
	err := r.db.
		Preload("Guide").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("group_members.id ASC") }).
		Preload("Members.User").
		Preload("Invitations", func(db *gorm.DB) *gorm.DB { return db.Order("group_invitations.id ASC") }).
		First(&group, id).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// ListForUser returns active groups the user guides or is an active member of.
func (r *GroupRepository) ListForUser(userID uint) ([]models.TourGroup, error) {
	var groups []models.TourGroup
	err := r.db.
		Where("tour_groups.is_active = ?", true).
		Where("tour_groups.guide_id = ? OR EXISTS (SELECT 1 FROM group_members gm WHERE gm.group_id = tour_groups.id AND gm.user_id = ? AND gm.status = ?)",
			userID, userID, models.MemberActive).
		Preload("Guide").
		Preload("Members", "status = ?", models.MemberActive).
		Order("tour_groups.created_at DESC, tour_groups.id DESC").
		Find(&groups).Error
	return groups, err
}

// lockActiveGroup selects the group row with a row lock of the given
// strength ("SHARE" or "UPDATE"), skipping deactivated groups.
func lockActiveGroup(tx *gorm.DB, groupID uint, strength string) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: strength}).
		Where("id = ? AND is_active = ?", groupID, true)
}

// insertActiveMembership appends member unless the user already holds an
// active row. The conflict target is the partial index idx_group_member_active.
func insertActiveMembership(tx *gorm.DB, member *models.GroupMember) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns:     []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "status = 'active'"}}},
		DoNothing:   true,
	}).Create(member)
}

func countActiveMembers(tx *gorm.DB, groupID uint) *gorm.DB {
	return tx.Model(&models.GroupMember{}).
		Where("group_id = ? AND status = ?", groupID, models.MemberActive)
}

func deactivateGroup(tx *gorm.DB, groupID uint) *gorm.DB {
	return tx.Model(&models.TourGroup{}).
		Where("id = ? AND is_active = ?", groupID, true).
		Updates(map[string]interface{}{"is_active": false})
}

// AcceptInvitation moves a pending invitation to accepted and appends an
// active membership in one transaction. It returns ErrStaleTransition when
// the invitation is no longer pending and gorm.ErrRecordNotFound when the
// group was deactivated. An existing active membership is left as is.
func (r *GroupRepository) AcceptInvitation(invitationID, groupID, userID uint, at time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var group models.TourGroup
		if err := lockActiveGroup(tx, groupID, "SHARE").First(&group).Error; err != nil {
			return err
		}

		res := tx.Model(&models.GroupInvitation{}).
			Where("id = ? AND status = ?", invitationID, models.InvitationPending).
			Updates(map[string]interface{}{
				"status":       models.InvitationAccepted,
				"responded_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleTransition
		}

		member := models.GroupMember{
			GroupID:  groupID,
			UserID:   userID,
			Status:   models.MemberActive,
			JoinedAt: at,
		}
		return insertActiveMembership(tx, &member).Error
	})
}

// Leave marks the user's active membership as left. It reports false when
// no active row existed.
func (r *GroupRepository) Leave(groupID, userID uint, at time.Time) (bool, error) {
	res := r.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ? AND status = ?", groupID, userID, models.MemberActive).
		Updates(map[string]interface{}{
			"status":  models.MemberLeft,
			"left_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

// Deactivate soft-deletes the group only while it has no active members.
// The group row is locked FOR UPDATE first, which waits out any accept
// holding it FOR SHARE; the member count then runs on a fresh snapshot.
func (r *GroupRepository) Deactivate(groupID uint) (bool, error) {
	deactivated := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var group models.TourGroup
		if err := lockActiveGroup(tx, groupID, "UPDATE").First(&group).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		var active int64
		if err := countActiveMembers(tx, groupID).Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return nil
		}

		res := deactivateGroup(tx, groupID)
		if res.Error != nil {
			return res.Error
		}
		deactivated = res.RowsAffected > 0
		return nil
	})
	return deactivated, err
}
