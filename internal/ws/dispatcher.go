package ws

import (
	"errors"

	"github.com/whisper/rendezvous/internal/logx"
	"github.com/whisper/rendezvous/internal/protocol"
)

// Error codes sent back for frames that never reach a handler.
const (
	CodeParseError      = "parse_error"
	CodeUnsupportedType = "unsupported_type"
	CodeInvalidPayload  = "invalid_payload"
)

// MessageHandler handles one parsed client message. msg is the plain struct
// returned by protocol.ParseClientMessage (protocol.OfferMsg, ...).
type MessageHandler func(conn *Connection, msg protocol.ClientMessage)

// MessageDispatcher routes parsed frames to handlers by message type. Ping
// is answered here; malformed or unregistered frames get an error reply.
type MessageDispatcher struct {
	handlers map[string]MessageHandler
}

// NewMessageDispatcher creates an empty MessageDispatcher.
func NewMessageDispatcher() *MessageDispatcher {
	return &MessageDispatcher{handlers: make(map[string]MessageHandler)}
}

// Register sets the handler for msgType, replacing any previous one.
// Handlers must be registered before the server starts.
func (d *MessageDispatcher) Register(msgType string, handler MessageHandler) {
	d.handlers[msgType] = handler
}

// Handles reports whether msgType has a registered handler.
func (d *MessageDispatcher) Handles(msgType string) bool {
	_, ok := d.handlers[msgType]
	return ok
}

// Dispatch is the server's message callback.
func (d *MessageDispatcher) Dispatch(conn *Connection, data []byte) {
	msgType, msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		code, text := d.classify(msgType, err)
		logx.Debug("dispatch rejected frame", "conn_id", conn.ID, "type", msgType, "code", code, "error", err.Error())
		d.sendError(conn, code, text)
		return
	}

	if _, ok := msg.(protocol.PingMsg); ok {
		conn.Touch()
		d.reply(conn, protocol.PongMsg{})
		return
	}

	handler, ok := d.handlers[msgType]
	if !ok {
		logx.Debug("unsupported message type", "conn_id", conn.ID, "type", msgType)
		d.sendError(conn, CodeUnsupportedType, "unsupported message type")
		return
	}
	handler(conn, msg)
}

func (d *MessageDispatcher) classify(msgType string, err error) (code, text string) {
	switch {
	case msgType == "" || !errors.Is(err, protocol.ErrInvalidPayload):
		return CodeParseError, "invalid message format"
	case msgType != protocol.TypePing && d.handlers[msgType] == nil:
		return CodeUnsupportedType, "unsupported message type"
	default:
		return CodeInvalidPayload, "invalid " + msgType + " payload"
	}
}

func (d *MessageDispatcher) sendError(conn *Connection, code, message string) {
	d.reply(conn, protocol.ErrorMsg{Code: code, Message: message})
}

func (d *MessageDispatcher) reply(conn *Connection, msg protocol.ServerMessage) {
	if err := conn.Send(msg); err != nil {
		logx.Debug("dispatch reply failed", "conn_id", conn.ID, "type", msg.ServerType(), "error", err.Error())
	}
}
