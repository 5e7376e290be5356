package session

import (
	"github.com/whisper/rendezvous/internal/metrics"
	"github.com/whisper/rendezvous/internal/protocol"
)

// Trigger names why a user is leaving its current pairing.
type Trigger string

const (
	TriggerDisconnect Trigger = "disconnect"
	TriggerSkip       Trigger = "skip"
	TriggerStop       Trigger = "stop"
	TriggerReport     Trigger = "report"
)

// SkipChat ends the current pairing and puts both sides back into the
// waiting pool: the partner at the front, the caller at the back.
func (e *Engine) SkipChat(connID string) {
	e.leave(connID, TriggerSkip, protocol.TypeSkipChat)
}

// StopChat ends the current pairing and returns the caller to idle. The
// partner goes back to the front of the waiting pool.
func (e *Engine) StopChat(connID string) {
	e.leave(connID, TriggerStop, protocol.TypeStopChat)
}

func (e *Engine) leave(connID string, trigger Trigger, event string) {
	e.run(func(out *outbox) {
		u, ok := e.users.get(connID)
		if !ok {
			out.diagnose(Diagnostic{Reason: ReasonUnknownConnection, ConnID: connID, Event: event})
			return
		}
		if u.State == StateIdle {
			out.diagnose(Diagnostic{Reason: ReasonInvalidState, ConnID: connID, Event: event, Detail: u.State.String()})
			return
		}
		e.exit(out, u, trigger)
	})
}

// exit is the one cleanup path for disconnect, skip, stop and report. It is
// safe in any state; without a live room only the dispositions apply.
//
//	trigger     acting user   partner
//	disconnect  destroyed     searching, front of pool
//	skip        searching     searching, front of pool (actor at back)
//	stop        idle          searching, front of pool
//	report      idle          searching, front of pool
func (e *Engine) exit(out *outbox, u *User, trigger Trigger) {
	e.pool.Remove(u.ID)

	var partner *User
	if u.State == StateInChat {
		partner = e.dissolve(out, u, trigger)
	}

	switch trigger {
	case TriggerDisconnect:
		e.users.remove(u.ID)
	case TriggerSkip:
		e.enterSearching(u)
		e.pool.PushBack(u.ID)
	default:
		u.State = StateIdle
		u.RoomID = ""
	}

	if partner != nil {
		e.enterSearching(partner)
		e.pool.PushFront(partner.ID)
		out.send(partner.ID, protocol.AutoSearchingMsg{})
	}
	if trigger == TriggerSkip {
		out.send(u.ID, protocol.AutoSearchingMsg{})
	}

	e.matchmake(out)
}

// dissolve deletes u's room and tells both sides. It returns the partner if
// it is still live and still in that room.
func (e *Engine) dissolve(out *outbox, u *User, trigger Trigger) *User {
	room, ok := e.rooms.get(u.RoomID)
	if !ok {
		out.diagnose(Diagnostic{Reason: ReasonMissingRoom, ConnID: u.ID, Event: string(trigger), Detail: u.RoomID})
		return nil
	}

	var partner *User
	if pid, ok := room.Partner(u.ID); ok {
		if p, ok := e.users.get(pid); ok && p.State == StateInChat && p.RoomID == room.ID {
			partner = p
		} else {
			out.diagnose(Diagnostic{Reason: ReasonMissingPartner, ConnID: u.ID, Event: string(trigger), Detail: pid})
		}
	}

	if partner != nil {
		out.send(partner.ID, protocol.PartnerDisconnectedMsg{})
	}
	if trigger != TriggerDisconnect {
		out.send(u.ID, protocol.PartnerDisconnectedMsg{})
	}

	e.rooms.remove(room.ID)
	e.transcripts.Drop(room.ID)
	metrics.RoomsEndedTotal.WithLabelValues(string(trigger)).Inc()
	return partner
}
