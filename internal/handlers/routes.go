package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/tourchat-backend/internal/access"
	"github.com/noteduco342/tourchat-backend/internal/httpx"
	"github.com/noteduco342/tourchat-backend/internal/metrics"
	"github.com/noteduco342/tourchat-backend/internal/middleware"
	"github.com/noteduco342/tourchat-backend/internal/service"
)

// Router holds everything mounted by Register.
type Router struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Groups        *GroupHandler
	Messages      *MessageHandler
	Media         *MediaHandler
	Notifications *NotificationHandler
	Admin         *AdminHandler
	WebSocket     *WebSocketHandler

	Tokens         middleware.TokenParser
	Settings       *service.SettingsService
	Metrics        *metrics.Metrics
	AllowedOrigins []string

	// AuthRateLimit caps requests per IP per minute on /api/auth. Zero disables it.
	AuthRateLimit int
}

func (r *Router) Register(app *fiber.App) {
	authRequired := middleware.AuthRequired(r.Tokens)

	api := app.Group("/api")

	authHandlers := []fiber.Handler{}
	if r.AuthRateLimit > 0 {
		authHandlers = append(authHandlers, limiter.New(limiter.Config{
			Max:        r.AuthRateLimit,
			Expiration: time.Minute,
		}))
	}
	auth := api.Group("/auth", authHandlers...)
	auth.Post("/check-phone", r.Auth.CheckPhone)
	auth.Post("/verify-code", r.Auth.VerifyCode)
	auth.Post("/refresh-token", r.Auth.RefreshToken)
	auth.Post("/logout", authRequired, r.Auth.Logout)

	protected := api.Group("/", authRequired, middleware.Maintenance(r.Settings))
	protected.Get("/users/me", r.Users.Me)
	protected.Post("/users/complete-registration", r.Users.CompleteRegistration)

	// /groups/invitations must be registered before /groups/:id.
	protected.Post("/groups", middleware.RequireCapability(access.GroupCreate), r.Groups.CreateGroup)
	protected.Get("/groups", r.Groups.GetMyGroups)
	protected.Get("/groups/invitations", r.Groups.GetMyInvitations)
	protected.Post("/groups/invitations/:id/accept", r.Groups.AcceptInvitation)
	protected.Post("/groups/invitations/:id/reject", r.Groups.RejectInvitation)
	protected.Get("/groups/:id", r.Groups.GetGroup)
	protected.Get("/groups/:id/members", r.Groups.GetGroupMembers)
	protected.Post("/groups/:id/invite", middleware.RequireCapability(access.GroupInvite), r.Groups.Invite)
	protected.Post("/groups/:id/leave", r.Groups.LeaveGroup)
	protected.Delete("/groups/:id", middleware.RequireCapability(access.GroupDelete), r.Groups.DeleteGroup)
	protected.Get("/groups/:id/messages", r.Messages.Pull)

	protected.Post("/messages/sync", r.Messages.Sync)
	protected.Post("/messages/read", r.Messages.MarkRead)

	protected.Post(
		"/media",
		limiter.New(limiter.Config{
			Max:        30,
			Expiration: 10 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				if uid, err := httpx.LocalUint(c, "userID"); err == nil {
					return "media:" + strconv.FormatUint(uint64(uid), 10)
				}
				return c.IP()
			},
		}),
		r.Media.Upload,
	)
	protected.Get("/media/*", r.Media.Download)

	protected.Get("/notifications", r.Notifications.List)
	protected.Post("/notifications/:id/read", r.Notifications.MarkRead)

	admin := protected.Group("/admin", middleware.RequireCapability(access.AdminConsole))
	admin.Get("/users", r.Admin.ListUsers)
	admin.Patch("/users/:id/status", r.Admin.UpdateUserStatus)
	admin.Patch("/users/:id/role", r.Admin.UpdateUserRole)
	admin.Get("/guides", r.Admin.ListGuides)
	admin.Patch("/guides/:id/status", r.Admin.UpdateGuideStatus)
	admin.Get("/logs", r.Admin.ListLogs)
	admin.Patch("/logs/:id/resolve", r.Admin.ResolveLog)
	admin.Get("/settings", r.Admin.ListSettings)
	admin.Put("/settings/:key", r.Admin.UpdateSetting)

	if r.WebSocket != nil {
		app.Use(
			"/ws",
			middleware.OriginAllowed(r.AllowedOrigins),
			authRequired,
			func(c *fiber.Ctx) error {
				if websocket.IsWebSocketUpgrade(c) {
					return c.Next()
				}
				return fiber.ErrUpgradeRequired
			},
		)
		app.Get("/ws", websocket.New(r.WebSocket.HandleWebSocket))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Tour chat backend is running",
		})
	})
	if r.Metrics != nil {
		app.Get("/metrics", r.Metrics.Handler())
	}
}
