package repository

import (
	"github.com/noteduco342/tourchat-backend/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) FindByPhone(phone string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("phone_number = ?", phone).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindActiveIDs returns the subset of ids that belong to active users.
func (r *UserRepository) FindActiveIDs(ids []uint) ([]uint, error) {
	var found []uint
	if len(ids) == 0 {
		return found, nil
	}
	err := r.db.Model(&models.User{}).
		Where("id IN ? AND status = ?", ids, models.UserActive).
		Pluck("id", &found).Error
	return found, err
}

func (r *UserRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepository) UpdateStatus(id uint, status models.UserStatus, reason string) (bool, error) {
	res := r.db.Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"block_reason": reason,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *UserRepository) UpdateRole(id uint, role models.Role) (bool, error) {
	res := r.db.Model(&models.User{}).Where("id = ?", id).Update("role", role)
	return res.RowsAffected > 0, res.Error
}

// List returns one page of users matching filter, newest first, and the
// total number of matches.
func (r *UserRepository) List(filter UserFilter) ([]models.User, int64, error) {
	q := r.db.Model(&models.User{})
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	err := q.Order("created_at DESC, id DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit).
		Find(&users).Error
	return users, total, err
}
