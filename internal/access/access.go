// Package access decides who may read a tour group and which roles may
// perform privileged actions.
package access

import (
	"github.com/noteduco342/tourchat-backend/internal/models"
)

type Action string

const (
	GroupCreate  Action = "group:create"
	GroupInvite  Action = "group:invite"
	GroupDelete  Action = "group:delete"
	AdminConsole Action = "admin:console"
)

// CanAccessGroup reports whether userID is the group's guide or holds an
// active membership row. Members must be loaded on g.
func CanAccessGroup(userID uint, g *models.TourGroup) bool {
	if g == nil || userID == 0 {
		return false
	}
	if g.GuideID == userID {
		return true
	}
	for i := range g.Members {
		if g.Members[i].UserID == userID && g.Members[i].Status == models.MemberActive {
			return true
		}
	}
	return false
}

// IsActiveMember is CanAccessGroup without the guide shortcut.
func IsActiveMember(userID uint, g *models.TourGroup) bool {
	if g == nil {
		return false
	}
	for i := range g.Members {
		if g.Members[i].UserID == userID && g.Members[i].Status == models.MemberActive {
			return true
		}
	}
	return false
}

func Can(role models.Role, action Action) bool {
	switch role {
	case models.RoleAdmin:
		switch action {
		case GroupCreate, GroupInvite, GroupDelete, AdminConsole:
			return true
		}
	case models.RoleGuide:
		switch action {
		case GroupCreate, GroupInvite, GroupDelete:
			return true
		}
	}
	return false
}
