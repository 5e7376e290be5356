package session

import "github.com/whisper/rendezvous/internal/protocol"

type delivery struct {
	to  string
	msg protocol.ServerMessage
}

// outbox collects what one critical section wants to say, so the lock is
// never held across a network write or a user callback.
type outbox struct {
	deliveries  []delivery
	diagnostics []Diagnostic
}

func (o *outbox) send(to string, msg protocol.ServerMessage) {
	o.deliveries = append(o.deliveries, delivery{to: to, msg: msg})
}

func (o *outbox) diagnose(d Diagnostic) {
	o.diagnostics = append(o.diagnostics, d)
}

// post queues every delivery in m. It must run under the engine lock.
func (o *outbox) post(m *mailboxes) {
	for _, d := range o.deliveries {
		m.put(d.to, d.msg)
	}
}

// flush drains the mailboxes this outbox posted to, then reports the
// diagnostics. It runs after the engine lock is released.
func (o *outbox) flush(m *mailboxes, n Notifier, hook func(Diagnostic)) {
	seen := make(map[string]struct{}, len(o.deliveries))
	for _, d := range o.deliveries {
		if _, ok := seen[d.to]; ok {
			continue
		}
		seen[d.to] = struct{}{}
		m.drain(d.to, n)
	}
	for _, d := range o.diagnostics {
		countDiagnostic(d)
		hook(d)
	}
}
