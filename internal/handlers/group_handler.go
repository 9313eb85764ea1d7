package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/tourchat-backend/internal/httpx"
	"github.com/noteduco342/tourchat-backend/internal/middleware"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/service"
)

type GroupHandler struct {
	groupService *service.GroupService
	now          func() time.Time
}

func NewGroupHandler(groupService *service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService, now: time.Now}
}

type inviteRequest struct {
	UserIDs []uint `json:"user_ids"`
}

type groupDetail struct {
	models.GroupResponse
	Members     []models.MemberResponse     `json:"members"`
	Invitations []models.InvitationResponse `json:"invitations,omitempty"`
}

func (h *GroupHandler) detail(g *models.TourGroup, withInvitations bool) groupDetail {
	out := groupDetail{
		GroupResponse: g.ToResponse(),
		Members:       make([]models.MemberResponse, 0, len(g.Members)),
	}
	for i := range g.Members {
		out.Members = append(out.Members, g.Members[i].ToResponse())
	}
	if withInvitations {
		now := h.now()
		out.Invitations = make([]models.InvitationResponse, 0, len(g.Invitations))
		for i := range g.Invitations {
			out.Invitations = append(out.Invitations, g.Invitations[i].ToResponse(now))
		}
	}
	return out
}

func (h *GroupHandler) CreateGroup(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.CreateGroupInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	group, err := h.groupService.CreateGroup(userID, middleware.Role(c), input)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.Created(c, fiber.Map{"group": h.detail(group, false)})
}

func (h *GroupHandler) GetMyGroups(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	groups, err := h.groupService.ListGroupsForUser(userID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	out := make([]models.GroupResponse, 0, len(groups))
	for i := range groups {
		out = append(out, groups[i].ToResponse())
	}
	return httpx.OK(c, fiber.Map{"groups": out})
}

func (h *GroupHandler) GetGroup(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.Fail(c, err)
	}

	group, err := h.groupService.GetGroup(groupID, userID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"group": h.detail(group, false)})
}

// GetGroupMembers returns members plus the invitation history.
func (h *GroupHandler) GetGroupMembers(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.Fail(c, err)
	}

	group, err := h.groupService.ListMembers(groupID, userID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	d := h.detail(group, true)
	return httpx.OK(c, fiber.Map{"members": d.Members, "invitations": d.Invitations})
}

func (h *GroupHandler) Invite(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.Fail(c, err)
	}

	var req inviteRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	invitations, err := h.groupService.Invite(groupID, userID, req.UserIDs)
	if err != nil {
		return httpx.Fail(c, err)
	}
	now := h.now()
	out := make([]models.InvitationResponse, 0, len(invitations))
	for i := range invitations {
		out = append(out, invitations[i].ToResponse(now))
	}
	return httpx.Created(c, fiber.Map{"invitations": out})
}

func (h *GroupHandler) GetMyInvitations(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	invitations, err := h.groupService.ListMyInvitations(userID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	now := h.now()
	out := make([]models.InvitationResponse, 0, len(invitations))
	for i := range invitations {
		out = append(out, invitations[i].ToResponse(now))
	}
	return httpx.OK(c, fiber.Map{"invitations": out})
}

// AcceptInvitation takes the group id in :id, not the invitation id.
func (h *GroupHandler) AcceptInvitation(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.Fail(c, err)
	}

	group, err := h.groupService.AcceptInvitation(groupID, userID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"message": "Invitation accepted", "group": h.detail(group, false)})
}

func (h *GroupHandler) RejectInvitation(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.Fail(c, err)
	}

	if err := h.groupService.RejectInvitation(groupID, userID); err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"message": "Invitation rejected"})
}

func (h *GroupHandler) LeaveGroup(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.Fail(c, err)
	}

	if err := h.groupService.Leave(groupID, userID); err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"message": "Left group successfully"})
}

func (h *GroupHandler) DeleteGroup(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.Fail(c, err)
	}

	if err := h.groupService.DeleteGroup(groupID, userID, middleware.Role(c)); err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, fiber.Map{"message": "Group deleted"})
}
