package session

import (
	"sync"

	"github.com/whisper/rendezvous/internal/protocol"
)

// mailboxes holds one FIFO of pending messages per connection. Messages are
// queued while the engine lock is held, so every connection receives them in
// the order the state changes happened. Delivery runs outside the lock: the
// caller that finds a queue idle claims it and drains it, anyone queueing
// meanwhile leaves the rest to that caller.
type mailboxes struct {
	mu    sync.Mutex
	boxes map[string]*mailbox
}

type mailbox struct {
	queue    []protocol.ServerMessage
	draining bool
}

func newMailboxes() *mailboxes {
	return &mailboxes{boxes: make(map[string]*mailbox)}
}

func (m *mailboxes) put(to string, msg protocol.ServerMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	box, ok := m.boxes[to]
	if !ok {
		box = &mailbox{}
		m.boxes[to] = box
	}
	box.queue = append(box.queue, msg)
}

// drain delivers to's queue through n unless another caller already is.
func (m *mailboxes) drain(to string, n Notifier) {
	m.mu.Lock()
	box, ok := m.boxes[to]
	if !ok || box.draining {
		m.mu.Unlock()
		return
	}
	box.draining = true

	for len(box.queue) > 0 {
		msg := box.queue[0]
		box.queue[0] = nil
		box.queue = box.queue[1:]
		m.mu.Unlock()

		n.Notify(to, msg)

		m.mu.Lock()
	}
	delete(m.boxes, to)
	m.mu.Unlock()
}
