package gateway_test

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/whisper/rendezvous/internal/ban"
	"github.com/whisper/rendezvous/internal/gateway"
	"github.com/whisper/rendezvous/internal/mocks"
	"github.com/whisper/rendezvous/internal/protocol"
	"github.com/whisper/rendezvous/internal/ratelimit"
	"github.com/whisper/rendezvous/internal/session"
	"github.com/whisper/rendezvous/internal/ws"
)

type sent struct {
	to  string
	msg protocol.ServerMessage
}

type recorder struct {
	mu   sync.Mutex
	msgs []sent
}

func (r *recorder) Notify(connID string, msg protocol.ServerMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{to: connID, msg: msg})
}

func (r *recorder) all() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.msgs...)
}

type fixture struct {
	engine  *mocks.MockEngine
	limiter *mocks.MockRateLimiter
	bans    *mocks.MockBanChecker
	out     *recorder
	gw      *gateway.Gateway
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		engine:  mocks.NewMockEngine(ctrl),
		limiter: mocks.NewMockRateLimiter(ctrl),
		bans:    mocks.NewMockBanChecker(ctrl),
		out:     &recorder{},
	}
	f.gw = gateway.New(f.engine, f.out,
		gateway.WithRateLimiter(f.limiter),
		gateway.WithBans(f.bans),
	)
	return f
}

var profile = json.RawMessage(`{"uid":"pid-1","name":"A"}`)

var _ session.Notifier = (*recorder)(nil)

func TestGateway_StartSearching(t *testing.T) {
	t.Run("should search with the extracted persistent id", func(t *testing.T) {
		f := newFixture(t)

		// Given an allowed, unbanned identity
		f.limiter.EXPECT().Allow(gomock.Any(), "c1", ratelimit.RuleSearch).Return(ratelimit.Decision{Allowed: true}, nil)
		f.bans.EXPECT().Check(gomock.Any(), "pid-1").Return(ban.Status{}, nil)
		f.engine.EXPECT().StartSearching("c1", profile, "pid-1")

		// When it starts searching
		f.gw.Handle("c1", protocol.StartSearchingMsg{Profile: profile})

		// Then nothing is sent by the gateway itself
		require.Empty(t, f.out.all())
	})

	t.Run("should reply rate-limited and not search", func(t *testing.T) {
		f := newFixture(t)

		f.limiter.EXPECT().Allow(gomock.Any(), "c1", ratelimit.RuleSearch).
			Return(ratelimit.Decision{Allowed: false, RetryAfter: 1500 * time.Millisecond}, nil)

		f.gw.Handle("c1", protocol.StartSearchingMsg{Profile: profile})

		require.Equal(t, []sent{{to: "c1", msg: protocol.RateLimitedMsg{RetryAfter: 2}}}, f.out.all())
	})

	t.Run("should fail open when the limiter errors", func(t *testing.T) {
		f := newFixture(t)

		f.limiter.EXPECT().Allow(gomock.Any(), "c1", ratelimit.RuleSearch).
			Return(ratelimit.Decision{}, errors.New("redis down"))
		f.bans.EXPECT().Check(gomock.Any(), "pid-1").Return(ban.Status{}, nil)
		f.engine.EXPECT().StartSearching("c1", profile, "pid-1")

		f.gw.Handle("c1", protocol.StartSearchingMsg{Profile: profile})
		require.Empty(t, f.out.all())
	})

	t.Run("should reject a profile without persistent id", func(t *testing.T) {
		f := newFixture(t)

		f.limiter.EXPECT().Allow(gomock.Any(), "c1", ratelimit.RuleSearch).Return(ratelimit.Decision{Allowed: true}, nil)

		f.gw.Handle("c1", protocol.StartSearchingMsg{Profile: json.RawMessage(`{"name":"A"}`)})

		msgs := f.out.all()
		require.Len(t, msgs, 1)
		errMsg, ok := msgs[0].msg.(protocol.ErrorMsg)
		require.True(t, ok)
		require.Equal(t, gateway.CodeInvalidProfile, errMsg.Code)
	})

	t.Run("should reply banned for a banned identity", func(t *testing.T) {
		f := newFixture(t)

		f.limiter.EXPECT().Allow(gomock.Any(), "c1", ratelimit.RuleSearch).Return(ratelimit.Decision{Allowed: true}, nil)
		f.bans.EXPECT().Check(gomock.Any(), "pid-1").
			Return(ban.Status{Banned: true, Remaining: ban.Ban15Min, Reason: ban.ReasonMultipleReports}, nil)

		f.gw.Handle("c1", protocol.StartSearchingMsg{Profile: profile})

		require.Equal(t, []sent{{to: "c1", msg: protocol.BannedMsg{Duration: 900, Reason: ban.ReasonMultipleReports}}}, f.out.all())
	})

	t.Run("should fail open when the ban check errors", func(t *testing.T) {
		f := newFixture(t)

		f.limiter.EXPECT().Allow(gomock.Any(), "c1", ratelimit.RuleSearch).Return(ratelimit.Decision{Allowed: true}, nil)
		f.bans.EXPECT().Check(gomock.Any(), "pid-1").Return(ban.Status{}, errors.New("redis down"))
		f.engine.EXPECT().StartSearching("c1", profile, "pid-1")

		f.gw.Handle("c1", protocol.StartSearchingMsg{Profile: profile})
	})
}

func TestGateway_Relay(t *testing.T) {
	tests := []struct {
		name string
		msg  protocol.ClientMessage
		rule ratelimit.Rule
	}{
		{"should limit chat messages", protocol.ChatMessageMsg{PartnerID: "p", Message: "hi"}, ratelimit.RuleChat},
		{"should limit offers", protocol.OfferMsg{PartnerID: "p", SDP: json.RawMessage(`{}`)}, ratelimit.RuleSignal},
		{"should limit answers", protocol.AnswerMsg{PartnerID: "p", SDP: json.RawMessage(`{}`)}, ratelimit.RuleSignal},
		{"should limit candidates", protocol.IceCandidateMsg{PartnerID: "p", Candidate: json.RawMessage(`{}`)}, ratelimit.RuleSignal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			f.limiter.EXPECT().Allow(gomock.Any(), "c1", tt.rule).Return(ratelimit.Decision{Allowed: true}, nil)
			f.engine.EXPECT().Relay("c1", tt.msg)

			f.gw.Handle("c1", tt.msg)
		})
	}

	t.Run("should drop a limited chat message", func(t *testing.T) {
		f := newFixture(t)

		f.limiter.EXPECT().Allow(gomock.Any(), "c1", ratelimit.RuleChat).
			Return(ratelimit.Decision{Allowed: false, RetryAfter: 3 * time.Second}, nil)

		f.gw.Handle("c1", protocol.ChatMessageMsg{PartnerID: "p", Message: "spam"})

		require.Equal(t, []sent{{to: "c1", msg: protocol.RateLimitedMsg{RetryAfter: 3}}}, f.out.all())
	})
}

func TestGateway_UnlimitedEvents(t *testing.T) {
	// The limiter mock has no expectations: any Allow call fails the test.
	f := newFixture(t)

	f.engine.EXPECT().StopSearching("c1")
	f.engine.EXPECT().SkipChat("c1")
	f.engine.EXPECT().StopChat("c1")

	f.gw.Handle("c1", protocol.StopSearchingMsg{})
	f.gw.Handle("c1", protocol.SkipChatMsg{})
	f.gw.Handle("c1", protocol.StopChatMsg{})

	require.Empty(t, f.out.all())
}

func TestGateway_BindLeavesPingToDispatcher(t *testing.T) {
	f := newFixture(t)
	d := ws.NewMessageDispatcher()
	f.gw.Bind(d)

	// Given every client type but ping is routed to the gateway
	for _, typ := range []string{
		protocol.TypeStartSearching,
		protocol.TypeStopSearching,
		protocol.TypeSkipChat,
		protocol.TypeStopChat,
		protocol.TypeOffer,
		protocol.TypeAnswer,
		protocol.TypeIceCandidate,
		protocol.TypeChatMessage,
		protocol.TypeInitiateReport,
	} {
		require.True(t, d.Handles(typ), typ)
	}

	// Then pong has a single owner
	require.False(t, d.Handles(protocol.TypePing))
}

func TestGateway_InitiateReport(t *testing.T) {
	chatLog := json.RawMessage(`[{"from":"me","text":"hi"}]`)

	t.Run("should pass the decoded screenshot", func(t *testing.T) {
		f := newFixture(t)

		f.engine.EXPECT().InitiateReport("c1", "p2", []byte("png-bytes"), chatLog).Return(nil)

		f.gw.Handle("c1", protocol.InitiateReportMsg{
			PartnerID:  "p2",
			Screenshot: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes")),
			ChatLog:    chatLog,
		})
		require.Empty(t, f.out.all())
	})

	t.Run("should accept a report without screenshot", func(t *testing.T) {
		f := newFixture(t)

		f.engine.EXPECT().InitiateReport("c1", "p2", gomock.Nil(), gomock.Nil()).Return(session.ErrInvalidReport)

		f.gw.Handle("c1", protocol.InitiateReportMsg{PartnerID: "p2"})
	})

	t.Run("should fail the report on an undecodable screenshot", func(t *testing.T) {
		f := newFixture(t)

		f.gw.Handle("c1", protocol.InitiateReportMsg{PartnerID: "p2", Screenshot: "%%%"})

		require.Equal(t, []sent{{to: "c1", msg: protocol.ReportFailedMsg{}}}, f.out.all())
	})
}

func TestGateway_WithoutRedis(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	out := &recorder{}

	// Given no limiter and no ban store
	gw := gateway.New(engine, out)

	// Then start-searching goes straight to the engine
	engine.EXPECT().StartSearching("c1", profile, "pid-1")
	gw.Handle("c1", protocol.StartSearchingMsg{Profile: profile})
	require.Empty(t, out.all())
}
