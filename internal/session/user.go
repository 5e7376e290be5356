// Package session is the rendezvous core: it tracks every live connection,
// moves it through idle, searching and in-chat, pairs searchers into rooms,
// relays signaling between partners and tears rooms down again.
//
// All state lives in one Engine and is guarded by a single mutex, so every
// operation observes and leaves a consistent snapshot of users, waiting pool
// and rooms. Notifications are queued while the lock is held and delivered
// after it is released, in the order they were produced.
package session

import (
	"encoding/json"
	"time"
)

// State is where a connection sits in the search/chat cycle.
type State int

const (
	StateIdle State = iota
	StateSearching
	StateInChat
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateInChat:
		return "in_chat"
	default:
		return "unknown"
	}
}

// User is the record kept for one live connection.
//
// RoomID is set exactly when State is StateInChat. Profile and PersistentID
// are attached by the first start-searching and kept until disconnect.
type User struct {
	ID           string
	State        State
	RoomID       string
	Profile      json.RawMessage
	PersistentID string

	searchingSince time.Time
}

// Room is one active pairing.
type Room struct {
	ID      string
	Members [2]string
}

// Partner returns the member that is not id.
func (r Room) Partner(id string) (string, bool) {
	switch id {
	case r.Members[0]:
		return r.Members[1], true
	case r.Members[1]:
		return r.Members[0], true
	}
	return "", false
}
