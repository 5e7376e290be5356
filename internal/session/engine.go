package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whisper/rendezvous/internal/chat"
	"github.com/whisper/rendezvous/internal/matching"
	"github.com/whisper/rendezvous/internal/metrics"
	"github.com/whisper/rendezvous/internal/protocol"
	"github.com/whisper/rendezvous/internal/report"
)

// DefaultReportTimeout bounds a single call to the Reporter.
const DefaultReportTimeout = 10 * time.Second

// Notifier delivers one outbound message to one connection. Delivery is best
// effort; an unknown connection id is silently dropped.
type Notifier interface {
	Notify(connID string, msg protocol.ServerMessage)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(connID string, msg protocol.ServerMessage)

func (f NotifierFunc) Notify(connID string, msg protocol.ServerMessage) { f(connID, msg) }

// Reporter files an abuse report with whatever reviews them.
type Reporter interface {
	Submit(ctx context.Context, r report.Report) error
}

var errNoReporter = errors.New("session: no reporter configured")

type noReporter struct{}

func (noReporter) Submit(context.Context, report.Report) error { return errNoReporter }

// Option configures an Engine.
type Option func(*Engine)

// WithReporter sets the collaborator that receives abuse reports.
func WithReporter(r Reporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// WithDiagnostics replaces the hook that observes ignored events.
func WithDiagnostics(fn func(Diagnostic)) Option {
	return func(e *Engine) { e.diagnose = fn }
}

// WithRoomIDs replaces the room id generator.
func WithRoomIDs(fn func() string) Option {
	return func(e *Engine) { e.newRoomID = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// WithReportTimeout bounds each Reporter call.
func WithReportTimeout(d time.Duration) Option {
	return func(e *Engine) { e.reportTimeout = d }
}

// Engine owns every user, the waiting pool, the rooms and their transcripts.
type Engine struct {
	mu          sync.Mutex
	users       registry
	pool        *matching.Pool
	rooms       rooms
	transcripts *chat.Transcripts
	closing     bool

	notifier      Notifier
	mail          *mailboxes
	reporter      Reporter
	diagnose      func(Diagnostic)
	newRoomID     func() string
	now           func() time.Time
	reportTimeout time.Duration

	inflight sync.WaitGroup
}

// NewEngine creates an Engine that talks to clients through n.
func NewEngine(n Notifier, opts ...Option) *Engine {
	e := &Engine{
		users:         make(registry),
		pool:          matching.NewPool(),
		rooms:         make(rooms),
		transcripts:   chat.NewTranscripts(),
		notifier:      n,
		mail:          newMailboxes(),
		reporter:      noReporter{},
		diagnose:      LogDiagnostic,
		newRoomID:     uuid.NewString,
		now:           time.Now,
		reportTimeout: DefaultReportTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run executes fn as one critical section, then delivers what it queued.
// Deliveries are ordered per connection before the lock is released.
func (e *Engine) run(fn func(out *outbox)) {
	out := &outbox{}

	e.mu.Lock()
	fn(out)
	out.post(e.mail)
	metrics.WaitingPoolSize.Set(float64(e.pool.Len()))
	metrics.ActiveRooms.Set(float64(len(e.rooms)))
	e.mu.Unlock()

	out.flush(e.mail, e.notifier, e.diagnose)
}

// notify delivers msg to connID behind anything already queued for it.
func (e *Engine) notify(connID string, msg protocol.ServerMessage) {
	e.mail.put(connID, msg)
	e.mail.drain(connID, e.notifier)
}

// Connect registers a new idle user for connID.
func (e *Engine) Connect(connID string) {
	e.run(func(out *outbox) {
		if _, ok := e.users.add(connID); !ok {
			out.diagnose(Diagnostic{Reason: ReasonDuplicateConnection, ConnID: connID, Event: "connect"})
		}
	})
}

// Disconnect destroys connID's user. A partner is put back at the front of
// the waiting pool.
func (e *Engine) Disconnect(connID string) {
	e.run(func(out *outbox) {
		u, ok := e.users.get(connID)
		if !ok {
			out.diagnose(Diagnostic{Reason: ReasonUnknownConnection, ConnID: connID, Event: "disconnect"})
			return
		}
		e.exit(out, u, TriggerDisconnect)
	})
}

// StartSearching attaches profile and persistentID to connID and puts it in
// the waiting pool. Repeating it while already searching only refreshes the
// profile. It is ignored while in chat.
func (e *Engine) StartSearching(connID string, profile json.RawMessage, persistentID string) {
	e.run(func(out *outbox) {
		u, ok := e.users.get(connID)
		if !ok {
			out.diagnose(Diagnostic{Reason: ReasonUnknownConnection, ConnID: connID, Event: protocol.TypeStartSearching})
			return
		}
		if u.State == StateInChat {
			out.diagnose(Diagnostic{Reason: ReasonInvalidState, ConnID: connID, Event: protocol.TypeStartSearching, Detail: u.State.String()})
			return
		}
		if len(profile) == 0 || persistentID == "" {
			out.diagnose(Diagnostic{Reason: ReasonInvalidProfile, ConnID: connID, Event: protocol.TypeStartSearching})
			return
		}

		u.Profile = profile
		u.PersistentID = persistentID
		e.enterSearching(u)
		e.pool.PushBack(connID)
		e.matchmake(out)
	})
}

// StopSearching leaves the waiting pool. Only legal while searching.
func (e *Engine) StopSearching(connID string) {
	e.run(func(out *outbox) {
		u, ok := e.users.get(connID)
		if !ok {
			out.diagnose(Diagnostic{Reason: ReasonUnknownConnection, ConnID: connID, Event: protocol.TypeStopSearching})
			return
		}
		if u.State != StateSearching {
			out.diagnose(Diagnostic{Reason: ReasonInvalidState, ConnID: connID, Event: protocol.TypeStopSearching, Detail: u.State.String()})
			return
		}
		e.pool.Remove(connID)
		u.State = StateIdle
	})
}

func (e *Engine) enterSearching(u *User) {
	if u.State != StateSearching {
		u.searchingSince = e.now()
	}
	u.State = StateSearching
	u.RoomID = ""
}

// matchmake pairs waiting users until fewer than two remain.
func (e *Engine) matchmake(out *outbox) {
	matching.Drain(e.pool, e.users.searching,
		func(older, newer string) { e.pair(out, older, newer) },
		func(id string) {
			out.diagnose(Diagnostic{Reason: ReasonStaleEntry, ConnID: id, Event: "matchmake"})
		},
	)
}

// pair opens a room for two validated searchers. The one that waited longer
// starts the peer negotiation.
func (e *Engine) pair(out *outbox, olderID, newerID string) {
	older, _ := e.users.get(olderID)
	newer, _ := e.users.get(newerID)

	room := e.rooms.create(e.newRoomID(), older.ID, newer.ID)
	now := e.now()
	for _, u := range []*User{older, newer} {
		metrics.MatchWait.Observe(now.Sub(u.searchingSince).Seconds())
		u.State = StateInChat
		u.RoomID = room.ID
	}
	metrics.MatchesTotal.Inc()

	out.send(older.ID, protocol.MatchFoundMsg{
		RoomID:         room.ID,
		PartnerID:      newer.ID,
		Initiator:      true,
		PartnerProfile: newer.Profile,
	})
	out.send(newer.ID, protocol.MatchFoundMsg{
		RoomID:         room.ID,
		PartnerID:      older.ID,
		Initiator:      false,
		PartnerProfile: older.Profile,
	})
}

// Lookup returns a copy of connID's user.
func (e *Engine) Lookup(connID string) (User, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, ok := e.users.get(connID)
	if !ok {
		return User{}, false
	}
	return *u, true
}

// Stats is a point-in-time summary of the engine.
type Stats struct {
	Connections int `json:"connections"`
	Searching   int `json:"searching"`
	InChat      int `json:"inChat"`
	PoolEntries int `json:"poolEntries"`
	Rooms       int `json:"rooms"`
}

// Stats summarizes the engine's current state.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Connections: len(e.users),
		PoolEntries: e.pool.Len(),
		Rooms:       len(e.rooms),
	}
	for _, u := range e.users {
		switch u.State {
		case StateSearching:
			s.Searching++
		case StateInChat:
			s.InChat++
		}
	}
	return s
}

// Shutdown stops accepting new report submissions and waits for the ones in
// flight, or for ctx.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session: shutdown: %w", ctx.Err())
	}
}
