package ws

import "time"

const (
	MsgRead    = "messages.read"
	MsgReadAck = "messages.read.ack"
)

// MessageRead marks messages in one group as read over the socket,
// mirroring POST /api/messages/read.
type MessageRead struct {
	GroupID    uint   `json:"group_id"`
	MessageIDs []uint `json:"message_ids"`
}

type ReadAck struct {
	GroupID uint      `json:"group_id"`
	ReadAt  time.Time `json:"read_at"`
	Count   int       `json:"count"`
}

func (msg *MessageRead) GetType() string {
	return MsgRead
}

func (msg *MessageRead) Process(ctx *MessageContext) error {
	readAt, n, err := ctx.Messages.MarkRead(msg.GroupID, ctx.UserID, msg.MessageIDs)
	if err != nil {
		return err
	}
	return ctx.Reply(Envelope{Type: MsgReadAck, Payload: ReadAck{GroupID: msg.GroupID, ReadAt: readAt, Count: n}})
}
