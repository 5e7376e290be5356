// Package chat holds the text-message rules for relayed chat and the
// short per-room transcript that accompanies abuse reports.
package chat

import (
	"sync"
	"time"
)

// TranscriptSize is the number of recent messages retained per room.
const TranscriptSize = 20

// Line is one relayed chat message.
type Line struct {
	From string    `json:"from"` // connection id of the sender
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Transcripts keeps the last TranscriptSize lines of every live room in a
// ring buffer. Nothing is written anywhere else; a room's lines vanish with
// Drop.
type Transcripts struct {
	mu    sync.RWMutex
	rooms map[string]*ring
}

type ring struct {
	items [TranscriptSize]Line
	pos   int
	count int
}

// NewTranscripts creates an empty transcript set.
func NewTranscripts() *Transcripts {
	return &Transcripts{rooms: make(map[string]*ring)}
}

// Append records a line for roomID, overwriting the oldest once full.
func (t *Transcripts) Append(roomID string, line Line) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rooms[roomID]
	if !ok {
		r = &ring{}
		t.rooms[roomID] = r
	}
	r.items[r.pos] = line
	r.pos = (r.pos + 1) % TranscriptSize
	if r.count < TranscriptSize {
		r.count++
	}
}

// Snapshot returns the room's lines oldest first. The result is never nil.
func (t *Transcripts) Snapshot(roomID string) []Line {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.rooms[roomID]
	if !ok {
		return []Line{}
	}
	out := make([]Line, r.count)
	start := (r.pos - r.count + TranscriptSize) % TranscriptSize
	for i := range r.count {
		out[i] = r.items[(start+i)%TranscriptSize]
	}
	return out
}

// Drop forgets the room.
func (t *Transcripts) Drop(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rooms, roomID)
}

// Rooms returns how many rooms currently hold lines.
func (t *Transcripts) Rooms() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}
