package models

import (
	"time"
)

type TourGroup struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string     `gorm:"size:100;not null" json:"name"`
	Description string     `gorm:"size:500" json:"description"`
	GuideID     uint       `gorm:"not null;index" json:"guide_id"`
	IsActive    bool       `gorm:"not null;default:true;index" json:"is_active"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`

	// Associations
	Guide       User              `gorm:"foreignKey:GuideID" json:"guide"`
	Members     []GroupMember     `gorm:"foreignKey:GroupID" json:"members"`
	Invitations []GroupInvitation `gorm:"foreignKey:GroupID" json:"invitations"`
}

type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
	MemberLeft     MemberStatus = "left"
)

// GroupMember rows are append-only per (group, user). Leaving flips the row
// to left and keeps it; re-joining appends a new row. At most one row per
// pair is active.
type GroupMember struct {
	ID       uint         `gorm:"primarykey" json:"id"`
	GroupID  uint         `gorm:"not null;uniqueIndex:idx_group_member_active,where:status = 'active'" json:"group_id"`
	UserID   uint         `gorm:"not null;index;uniqueIndex:idx_group_member_active,where:status = 'active'" json:"user_id"`
	Status   MemberStatus `gorm:"type:varchar(10);not null;default:active" json:"status"`
	JoinedAt time.Time    `gorm:"not null" json:"joined_at"`
	LeftAt   *time.Time   `json:"left_at,omitempty"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
	InvitationExpired  InvitationStatus = "expired"
)

type GroupInvitation struct {
	ID          uint             `gorm:"primarykey" json:"id"`
	GroupID     uint             `gorm:"not null;index:idx_invitation_lookup" json:"group_id"`
	UserID      uint             `gorm:"not null;index:idx_invitation_lookup" json:"user_id"`
	Status      InvitationStatus `gorm:"type:varchar(10);not null;default:pending;index:idx_invitation_lookup" json:"status"`
	InvitedAt   time.Time        `gorm:"not null" json:"invited_at"`
	ExpiresAt   time.Time        `gorm:"not null;index" json:"expires_at"`
	RespondedAt *time.Time       `json:"responded_at,omitempty"`

	Group *TourGroup `gorm:"foreignKey:GroupID" json:"-"`
}

// CanTransition reports whether an invitation may move from one status to
// another. Only pending invitations move; every other status is terminal.
func CanTransition(from, to InvitationStatus) bool {
	if from != InvitationPending {
		return false
	}
	switch to {
	case InvitationAccepted, InvitationRejected, InvitationExpired:
		return true
	}
	return false
}

// EffectiveStatus projects lazy expiry onto a stored status.
func (i *GroupInvitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationPending && i.ExpiresAt.Before(now) {
		return InvitationExpired
	}
	return i.Status
}

type MemberResponse struct {
	ID       uint         `json:"id"`
	User     UserSummary  `json:"user"`
	Status   MemberStatus `json:"status"`
	JoinedAt time.Time    `json:"joined_at"`
	LeftAt   *time.Time   `json:"left_at,omitempty"`
}

func (m *GroupMember) ToResponse() MemberResponse {
	return MemberResponse{
		ID:       m.ID,
		User:     m.User.Summary(),
		Status:   m.Status,
		JoinedAt: m.JoinedAt,
		LeftAt:   m.LeftAt,
	}
}

type InvitationResponse struct {
	ID              uint             `json:"id"`
	GroupID         uint             `json:"group_id"`
	GroupName       string           `json:"group_name,omitempty"`
	UserID          uint             `json:"user_id"`
	Status          InvitationStatus `json:"status"`
	EffectiveStatus InvitationStatus `json:"effective_status"`
	InvitedAt       time.Time        `json:"invited_at"`
	ExpiresAt       time.Time        `json:"expires_at"`
	RespondedAt     *time.Time       `json:"responded_at,omitempty"`
}

func (i *GroupInvitation) ToResponse(now time.Time) InvitationResponse {
	var groupName string
	if i.Group != nil {
		groupName = i.Group.Name
	}
	return InvitationResponse{
		GroupName:       groupName,
		ID:              i.ID,
		GroupID:         i.GroupID,
		UserID:          i.UserID,
		Status:          i.Status,
		EffectiveStatus: i.EffectiveStatus(now),
		InvitedAt:       i.InvitedAt,
		ExpiresAt:       i.ExpiresAt,
		RespondedAt:     i.RespondedAt,
	}
}

type GroupResponse struct {
	ID          uint        `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Guide       UserSummary `json:"guide"`
	IsActive    bool        `json:"is_active"`
	StartDate   *time.Time  `json:"start_date,omitempty"`
	EndDate     *time.Time  `json:"end_date,omitempty"`
	MemberCount int         `json:"member_count"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (g *TourGroup) ToResponse() GroupResponse {
	return GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Guide:       g.Guide.Summary(),
		IsActive:    g.IsActive,
		StartDate:   g.StartDate,
		EndDate:     g.EndDate,
		MemberCount: g.ActiveMemberCount(),
		CreatedAt:   g.CreatedAt,
	}
}

func (g *TourGroup) ActiveMemberCount() int {
	n := 0
	for i := range g.Members {
		if g.Members[i].Status == MemberActive {
			n++
		}
	}
	return n
}
