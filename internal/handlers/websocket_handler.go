package handlers

import (
	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/tourchat-backend/internal/handlers/ws"
	"github.com/sirupsen/logrus"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	messages ws.ReadMarker
	log      logrus.FieldLogger
}

func NewWebSocketHandler(hub *ws.Hub, messages ws.ReadMarker, log logrus.FieldLogger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, messages: messages, log: log}
}

// HandleWebSocket serves one authenticated connection until the client goes
// away. Server pushes go through the hub; inbound frames are dispatched by
// type.
func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		_ = c.Close()
		return
	}

	supportsGzip := c.Query("gzip") == "1" || c.Headers("X-Supports-Gzip") == "1"
	client := h.hub.Register(userID, c, supportsGzip)
	defer h.hub.Unregister(client)

	ctx := &ws.MessageContext{
		UserID:   userID,
		Client:   client,
		Hub:      h.hub,
		Messages: h.messages,
		Log:      h.log,
	}

	for {
		frameType, data, err := c.ReadMessage()
		if err != nil {
			h.log.WithError(err).WithField("user_id", userID).Debug("websocket read ended")
			return
		}
		ws.Handle(ctx, frameType, data)
	}
}
