package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleGuide Role = "guide"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleAdmin:
		return true
	}
	return false
}

type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserBlocked UserStatus = "blocked"
	UserDeleted UserStatus = "deleted"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	PhoneNumber string     `gorm:"size:16;uniqueIndex;not null" json:"phone_number"`
	FirstName   string     `gorm:"size:50" json:"first_name"`
	LastName    string     `gorm:"size:50" json:"last_name"`
	Email       *string    `gorm:"size:255" json:"email,omitempty"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Gender      *Gender    `gorm:"type:varchar(10)" json:"gender,omitempty"`

	Role        Role       `gorm:"type:varchar(10);not null;default:user;index" json:"role"`
	Status      UserStatus `gorm:"type:varchar(10);not null;default:active;index" json:"status"`
	BlockReason string     `gorm:"size:255" json:"block_reason,omitempty"`

	IsVerified             bool       `gorm:"default:false" json:"is_verified"`
	IsRegistrationComplete bool       `gorm:"default:false" json:"is_registration_complete"`
	LastLoginAt            *time.Time `json:"last_login_at,omitempty"`
}

func (u *User) IsActive() bool {
	return u.Status == UserActive
}

type UserResponse struct {
	ID                     uint       `json:"id"`
	PhoneNumber            string     `json:"phone_number"`
	FirstName              string     `json:"first_name"`
	LastName               string     `json:"last_name"`
	Email                  *string    `json:"email,omitempty"`
	BirthDate              *time.Time `json:"birth_date,omitempty"`
	Gender                 *Gender    `json:"gender,omitempty"`
	Role                   Role       `json:"role"`
	Status                 UserStatus `json:"status"`
	BlockReason            string     `json:"block_reason,omitempty"`
	IsVerified             bool       `json:"is_verified"`
	IsRegistrationComplete bool       `json:"is_registration_complete"`
	CreatedAt              time.Time  `json:"created_at"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:                     u.ID,
		PhoneNumber:            u.PhoneNumber,
		FirstName:              u.FirstName,
		LastName:               u.LastName,
		Email:                  u.Email,
		BirthDate:              u.BirthDate,
		Gender:                 u.Gender,
		Role:                   u.Role,
		Status:                 u.Status,
		BlockReason:            u.BlockReason,
		IsVerified:             u.IsVerified,
		IsRegistrationComplete: u.IsRegistrationComplete,
		CreatedAt:              u.CreatedAt,
	}
}

// UserSummary is the display subset embedded in messages and member lists.
type UserSummary struct {
	ID          uint   `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
	}
}
