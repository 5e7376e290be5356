package session

import (
	"github.com/whisper/rendezvous/internal/chat"
	"github.com/whisper/rendezvous/internal/metrics"
	"github.com/whisper/rendezvous/internal/protocol"
)

// Relay forwards an offer, answer, ICE candidate or chat message from
// senderID to the partner id it names, tagged with the sender. Signaling is
// not gated on state; chat requires the sender to be in a room.
//
// The named partner is not checked against the sender's room.
func (e *Engine) Relay(senderID string, msg protocol.ClientMessage) {
	e.run(func(out *outbox) {
		event := msg.ClientType()
		sender, ok := e.users.get(senderID)
		if !ok {
			out.diagnose(Diagnostic{Reason: ReasonUnknownConnection, ConnID: senderID, Event: event})
			return
		}

		var (
			target string
			fwd    protocol.ServerMessage
			line   *chat.Line
		)
		switch m := msg.(type) {
		case protocol.OfferMsg:
			target, fwd = m.PartnerID, protocol.RelayedOfferMsg{SDP: m.SDP, SenderID: senderID}
		case protocol.AnswerMsg:
			target, fwd = m.PartnerID, protocol.RelayedAnswerMsg{SDP: m.SDP, SenderID: senderID}
		case protocol.IceCandidateMsg:
			target, fwd = m.PartnerID, protocol.RelayedIceCandidateMsg{Candidate: m.Candidate, SenderID: senderID}
		case protocol.ChatMessageMsg:
			if sender.State != StateInChat {
				out.diagnose(Diagnostic{Reason: ReasonInvalidState, ConnID: senderID, Event: event, Detail: sender.State.String()})
				return
			}
			if err := chat.ValidateMessage(m.Message); err != nil {
				out.diagnose(Diagnostic{Reason: ReasonInvalidMessage, ConnID: senderID, Event: event, Detail: err.Error()})
				return
			}
			target, fwd = m.PartnerID, protocol.RelayedChatMsg{Message: m.Message, From: senderID}
			line = &chat.Line{From: senderID, Text: m.Message, At: e.now()}
		default:
			out.diagnose(Diagnostic{Reason: ReasonInvalidMessage, ConnID: senderID, Event: event, Detail: "not relayable"})
			return
		}

		if _, ok := e.users.get(target); !ok {
			out.diagnose(Diagnostic{Reason: ReasonMissingTarget, ConnID: senderID, Event: event, Detail: target})
			return
		}
		if line != nil {
			e.transcripts.Append(sender.RoomID, *line)
		}
		metrics.RelayedTotal.WithLabelValues(event).Inc()
		out.send(target, fwd)
	})
}
