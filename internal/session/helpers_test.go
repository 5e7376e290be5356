package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/whisper/rendezvous/internal/logx"
	"github.com/whisper/rendezvous/internal/protocol"
	"github.com/whisper/rendezvous/internal/report"
)

func init() {
	logx.SetOutput(io.Discard)
}

type sent struct {
	to  string
	msg protocol.ServerMessage
}

// recorder is a Notifier that keeps everything it was asked to deliver.
type recorder struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recorder) Notify(to string, msg protocol.ServerMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{to: to, msg: msg})
}

// to returns the messages delivered to id, oldest first.
func (r *recorder) to(id string) []protocol.ServerMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.FilterMap(r.sent, func(s sent, _ int) (protocol.ServerMessage, bool) {
		return s.msg, s.to == id
	})
}

func (r *recorder) typesTo(id string) []string {
	return lo.Map(r.to(id), func(m protocol.ServerMessage, _ int) string { return m.ServerType() })
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// matchFor returns the last match-found delivered to id.
func (r *recorder) matchFor(t *testing.T, id string) protocol.MatchFoundMsg {
	t.Helper()
	var found *protocol.MatchFoundMsg
	for _, m := range r.to(id) {
		if mf, ok := m.(protocol.MatchFoundMsg); ok {
			found = &mf
		}
	}
	require.NotNil(t, found, "no match-found delivered to %s", id)
	return *found
}

// diagnostics collects what the engine reported through its hook.
type diagnostics struct {
	mu  sync.Mutex
	all []Diagnostic
}

func (d *diagnostics) hook(diag Diagnostic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all = append(d.all, diag)
}

func (d *diagnostics) reasons() []Reason {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lo.Map(d.all, func(x Diagnostic, _ int) Reason { return x.Reason })
}

// fakeReporter records reports. When release is set, each Submit blocks
// until a result is sent on it.
type fakeReporter struct {
	mu      sync.Mutex
	reports []report.Report
	release chan error
}

func (f *fakeReporter) Submit(ctx context.Context, r report.Report) error {
	f.mu.Lock()
	f.reports = append(f.reports, r)
	release := f.release
	f.mu.Unlock()

	if release == nil {
		return nil
	}
	select {
	case err := <-release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeReporter) submitted() []report.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]report.Report(nil), f.reports...)
}

type harness struct {
	*Engine
	rec    *recorder
	diags  *diagnostics
	report *fakeReporter
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		rec:    &recorder{},
		diags:  &diagnostics{},
		report: &fakeReporter{},
	}
	n := 0
	base := []Option{
		WithDiagnostics(h.diags.hook),
		WithReporter(h.report),
		WithRoomIDs(func() string {
			n++
			return fmt.Sprintf("room-%d", n)
		}),
		WithReportTimeout(time.Second),
	}
	h.Engine = NewEngine(h.rec, append(base, opts...)...)
	return h
}

func profile(id string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"uid":"pid-%s","name":"%s"}`, id, id))
}

// search connects id (if needed) and sends start-searching.
func (h *harness) search(t *testing.T, id string) {
	t.Helper()
	if _, ok := h.Lookup(id); !ok {
		h.Connect(id)
	}
	h.StartSearching(id, profile(id), "pid-"+id)
	h.check(t)
}

// enqueue puts users straight into the waiting pool without running the
// matchmaker, so a single pass can be observed.
func (h *harness) enqueue(ids ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		u, ok := h.users.get(id)
		if !ok {
			u, _ = h.users.add(id)
		}
		u.Profile = profile(id)
		u.PersistentID = "pid-" + id
		u.State = StateSearching
		h.pool.PushBack(id)
	}
}

func (h *harness) matchmakeNow() {
	h.run(func(out *outbox) { h.matchmake(out) })
}

func (h *harness) poolIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pool.IDs()
}

func (h *harness) roomExists(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.rooms.get(id)
	return ok
}

// check asserts every structural invariant of the engine.
func (h *harness) check(t *testing.T) {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, room := range h.rooms {
		require.Equal(t, id, room.ID)
		require.NotEqual(t, room.Members[0], room.Members[1], "room %s pairs a user with itself", id)
		for _, m := range room.Members {
			u, ok := h.users.get(m)
			require.True(t, ok, "room %s references vanished user %s", id, m)
			require.Equal(t, StateInChat, u.State, "room %s member %s", id, m)
			require.Equal(t, id, u.RoomID, "room %s member %s", id, m)
		}
	}

	for id, u := range h.users {
		require.Equal(t, id, u.ID)
		switch u.State {
		case StateIdle:
			require.Empty(t, u.RoomID, "idle user %s has a room", id)
			require.False(t, h.pool.Contains(id), "idle user %s is waiting", id)
		case StateSearching:
			require.Empty(t, u.RoomID, "searching user %s has a room", id)
			require.NotEmpty(t, u.Profile, "searching user %s has no profile", id)
			require.NotEmpty(t, u.PersistentID, "searching user %s has no persistent id", id)
			require.True(t, h.pool.Contains(id), "searching user %s is not waiting", id)
		case StateInChat:
			room, ok := h.rooms.get(u.RoomID)
			require.True(t, ok, "user %s references missing room %s", id, u.RoomID)
			_, member := room.Partner(id)
			require.True(t, member, "user %s is not a member of %s", id, u.RoomID)
			require.False(t, h.pool.Contains(id), "chatting user %s is waiting", id)
		}
	}

	ids := h.pool.IDs()
	require.Len(t, lo.Uniq(ids), len(ids), "duplicate waiting pool entry: %v", ids)
	require.Less(t, len(ids), 2, "matchmaker left pairable entries: %v", ids)
	require.LessOrEqual(t, h.transcripts.Rooms(), len(h.rooms))
}
