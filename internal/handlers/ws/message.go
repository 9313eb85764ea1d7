package ws

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/sirupsen/logrus"
)

// ReadMarker records read receipts. Satisfied by *service.MessageService.
type ReadMarker interface {
	MarkRead(groupID, requesterID uint, messageIDs []uint) (time.Time, int, error)
}

// MessageContext provides all dependencies needed for message processing
type MessageContext struct {
	UserID   uint
	Client   *Client
	Hub      *Hub
	Messages ReadMarker
	Log      logrus.FieldLogger
}

func (ctx *MessageContext) Reply(v interface{}) error {
	return ctx.Hub.Send(ctx.Client, v)
}

// Message interface for all inbound WebSocket message types
type Message interface {
	GetType() string
	Process(ctx *MessageContext) error
}

// SerializedMessage is the wire format wrapper
type SerializedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ErrorResponse is sent when message processing fails
type ErrorResponse struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func CreateMessage(msgType string, typeRegistry map[string]reflect.Type) (Message, error) {
	msgTypeReflect, ok := typeRegistry[msgType]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %s", msgType)
	}

	instance := reflect.New(msgTypeReflect).Interface()
	return instance.(Message), nil
}

// SendError sends an error response to the client
func SendError(ctx *MessageContext, code, message, details string) error {
	return ctx.Reply(ErrorResponse{
		Type:    "error",
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// Handle decodes and processes one inbound frame. Failures are reported to
// the client; the connection stays open.
func Handle(ctx *MessageContext, frameType int, data []byte) {
	if frameType == websocket.BinaryMessage {
		decompressed, err := DecompressMessage(data)
		if err != nil {
			_ = SendError(ctx, "decompression_failed", "Failed to decompress message", err.Error())
			return
		}
		data = decompressed
	}

	msg, err := Deserialize(data)
	if err != nil {
		_ = SendError(ctx, "invalid_message", "Invalid message format", err.Error())
		return
	}

	if err := msg.Process(ctx); err != nil {
		if appErr, ok := apperr.As(err); ok && appErr.Kind != apperr.KindUnexpected {
			_ = SendError(ctx, appErr.Code, appErr.Message, "")
			return
		}
		ctx.Log.WithError(err).WithFields(logrus.Fields{"user_id": ctx.UserID, "type": msg.GetType()}).Error("websocket message failed")
		_ = SendError(ctx, "processing_failed", "Failed to process message", "")
	}
}
