package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/whisper/rendezvous/internal/protocol"
)

func waitForType(t *testing.T, h *harness, id, typ string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, got := range h.rec.typesTo(id) {
			if got == typ {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "%s never received %s", id, typ)
}

func TestInitiateReport_CleansUpBeforeReporterAnswers(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.report.release = make(chan error)

	// Given X and Y paired, a line of chat, and Z waiting
	room := pairUp(t, h, "X", "Y")
	h.Relay("Y", protocol.ChatMessageMsg{PartnerID: "X", Message: "rude"})
	h.search(t, "Z")
	h.rec.reset()

	// When X reports Y and the reporter has not answered yet
	err := h.InitiateReport("X", "Y", []byte("png"), json.RawMessage(`[{"from":"Y","text":"rude"}]`))
	req.NoError(err)
	h.check(t)

	// Then the room is already gone, X is idle and Y is re-paired with Z
	req.False(h.roomExists(room))
	x, _ := h.Lookup("X")
	req.Equal(StateIdle, x.State)
	req.Equal("Z", h.rec.matchFor(t, "Y").PartnerID)
	req.Equal([]string{protocol.TypePartnerDisconnected}, h.rec.typesTo("X"))

	// When the reporter succeeds
	h.report.release <- nil
	waitForType(t, h, "X", protocol.TypeReportSuccessful)

	// Then only X hears about it
	req.NotContains(h.rec.typesTo("Y"), protocol.TypeReportSuccessful)
	req.NotContains(h.rec.typesTo("Z"), protocol.TypeReportSuccessful)

	reports := h.report.submitted()
	req.Len(reports, 1)
	r := reports[0]
	req.Equal("pid-X", r.ReporterID)
	req.Equal("pid-Y", r.ReportedID)
	req.Equal("Y", r.ReportedConn)
	req.Equal(room, r.RoomID)
	req.Equal([]byte("png"), r.Screenshot)
	req.JSONEq(`[{"from":"Y","text":"rude"}]`, string(r.ChatLog))
	req.Len(r.Transcript, 1)
	req.Equal("rude", r.Transcript[0].Text)
}

func TestInitiateReport_FailureGoesToReporterOnly(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.report.release = make(chan error, 1)
	h.report.release <- errors.New("nats: timeout")
	pairUp(t, h, "X", "Y")

	req.NoError(h.InitiateReport("X", "Y", nil, nil))
	waitForType(t, h, "X", protocol.TypeReportFailed)
	h.check(t)

	req.Equal([]string{protocol.TypePartnerDisconnected, protocol.TypeAutoSearching}, h.rec.typesTo("Y"))
	y, _ := h.Lookup("Y")
	req.Equal(StateSearching, y.State)
	req.Equal([]string{"Y"}, h.poolIDs())
}

func TestInitiateReport_RejectsWrongPartner(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	room := pairUp(t, h, "X", "Y")
	h.Connect("W")

	err := h.InitiateReport("X", "W", nil, nil)
	req.ErrorIs(err, ErrInvalidReport)
	h.check(t)

	req.True(h.roomExists(room))
	x, _ := h.Lookup("X")
	req.Equal(StateInChat, x.State)
	req.Equal([]string{protocol.TypeReportFailed}, h.rec.typesTo("X"))
	req.Empty(h.rec.to("Y"))
	req.Equal([]Reason{ReasonInvalidReport}, h.diags.reasons())
	req.Empty(h.report.submitted())
}

func TestInitiateReport_RejectsWhenNotInChat(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.search(t, "X")
	h.Connect("Y")

	req.ErrorIs(h.InitiateReport("X", "Y", nil, nil), ErrInvalidReport)
	req.ErrorIs(h.InitiateReport("ghost", "Y", nil, nil), ErrInvalidReport)
	h.check(t)

	x, _ := h.Lookup("X")
	req.Equal(StateSearching, x.State)
	req.Equal([]string{protocol.TypeReportFailed}, h.rec.typesTo("X"))
}

func TestInitiateReport_RequiresPersistentIdentity(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	room := pairUp(t, h, "X", "Y")
	h.mu.Lock()
	h.users["Y"].PersistentID = ""
	h.mu.Unlock()

	req.ErrorIs(h.InitiateReport("X", "Y", nil, nil), ErrInvalidReport)

	req.True(h.roomExists(room))
	req.Empty(h.report.submitted())
}

func TestInitiateReport_NoReporterConfigured(t *testing.T) {
	h := newHarness(t, WithReporter(noReporter{}))
	pairUp(t, h, "X", "Y")

	require.NoError(t, h.InitiateReport("X", "Y", nil, nil))
	waitForType(t, h, "X", protocol.TypeReportFailed)
}

func TestShutdown_WaitsForReports(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.report.release = make(chan error)
	pairUp(t, h, "X", "Y")
	req.NoError(h.InitiateReport("X", "Y", nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req.ErrorIs(h.Shutdown(ctx), context.DeadlineExceeded)

	h.report.release <- nil
	req.NoError(h.Shutdown(context.Background()))
	req.Equal([]string{protocol.TypePartnerDisconnected, protocol.TypeReportSuccessful}, h.rec.typesTo("X"))
}

func TestShutdown_FailsNewReports(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	pairUp(t, h, "X", "Y")
	req.NoError(h.Shutdown(context.Background()))

	req.NoError(h.InitiateReport("X", "Y", nil, nil))
	h.check(t)

	req.Equal([]string{protocol.TypePartnerDisconnected, protocol.TypeReportFailed}, h.rec.typesTo("X"))
	req.Empty(h.report.submitted())
}
