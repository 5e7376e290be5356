//go:generate go run go.uber.org/mock/mockgen -source=gateway.go -destination=../mocks/mock_gateway.go -package=mocks

// Package gateway sits between the WebSocket dispatcher and the session
// engine. Every inbound event passes its rate limit first; start-searching
// additionally needs a persistent id in the profile and no active ban.
// Redis-backed checks fail open.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/whisper/rendezvous/internal/ban"
	"github.com/whisper/rendezvous/internal/identity"
	"github.com/whisper/rendezvous/internal/logx"
	"github.com/whisper/rendezvous/internal/protocol"
	"github.com/whisper/rendezvous/internal/ratelimit"
	"github.com/whisper/rendezvous/internal/session"
	"github.com/whisper/rendezvous/internal/ws"
)

// CheckTimeout bounds each Redis round trip made for one event.
const CheckTimeout = 2 * time.Second

// CodeInvalidProfile is the error code for a profile without a usable
// persistent id.
const CodeInvalidProfile = "invalid_profile"

// Engine is the part of session.Engine the gateway drives.
type Engine interface {
	StartSearching(connID string, profile json.RawMessage, persistentID string)
	StopSearching(connID string)
	SkipChat(connID string)
	StopChat(connID string)
	Relay(senderID string, msg protocol.ClientMessage)
	InitiateReport(connID, partnerID string, screenshot []byte, chatLog json.RawMessage) error
}

// RateLimiter counts one hit against a rule.
type RateLimiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (ratelimit.Decision, error)
}

// BanChecker reports whether a persistent id is banned.
type BanChecker interface {
	Check(ctx context.Context, id string) (ban.Status, error)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRateLimiter enables per-connection event limits.
func WithRateLimiter(l RateLimiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

// WithBans rejects start-searching from banned identities.
func WithBans(b BanChecker) Option {
	return func(g *Gateway) { g.bans = b }
}

// WithIdentity replaces the persistent id extractor.
func WithIdentity(e *identity.Extractor) Option {
	return func(g *Gateway) { g.ids = e }
}

// Gateway turns parsed client messages into engine calls.
type Gateway struct {
	engine   Engine
	notifier session.Notifier
	limiter  RateLimiter
	bans     BanChecker
	ids      *identity.Extractor
}

// New creates a Gateway. Replies the gateway produces itself (rate-limited,
// banned, error, report-failed) go through notifier. Ping never reaches the
// gateway; the dispatcher answers it.
func New(engine Engine, notifier session.Notifier, opts ...Option) *Gateway {
	g := &Gateway{
		engine:   engine,
		notifier: notifier,
		ids:      identity.NewExtractor(identity.DefaultField),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Bind registers the gateway for every client message type on d.
func (g *Gateway) Bind(d *ws.MessageDispatcher) {
	handler := func(c *ws.Connection, msg protocol.ClientMessage) {
		g.Handle(c.ID, msg)
	}
	for _, t := range []string{
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
		d.Register(t, handler)
	}
}

// Handle processes one message from connID.
func (g *Gateway) Handle(connID string, msg protocol.ClientMessage) {
	if !g.allow(connID, msg) {
		return
	}

	switch m := msg.(type) {
	case protocol.StartSearchingMsg:
		g.startSearching(connID, m)
	case protocol.StopSearchingMsg:
		g.engine.StopSearching(connID)
	case protocol.SkipChatMsg:
		g.engine.SkipChat(connID)
	case protocol.StopChatMsg:
		g.engine.StopChat(connID)
	case protocol.OfferMsg, protocol.AnswerMsg, protocol.IceCandidateMsg, protocol.ChatMessageMsg:
		g.engine.Relay(connID, msg)
	case protocol.InitiateReportMsg:
		g.initiateReport(connID, m)
	default:
		logx.Warn("gateway: unhandled message", "conn_id", connID, "type", msg.ClientType())
	}
}

func ruleFor(msg protocol.ClientMessage) (ratelimit.Rule, bool) {
	switch msg.(type) {
	case protocol.StartSearchingMsg:
		return ratelimit.RuleSearch, true
	case protocol.ChatMessageMsg:
		return ratelimit.RuleChat, true
	case protocol.OfferMsg, protocol.AnswerMsg, protocol.IceCandidateMsg:
		return ratelimit.RuleSignal, true
	default:
		return ratelimit.Rule{}, false
	}
}

func (g *Gateway) allow(connID string, msg protocol.ClientMessage) bool {
	rule, limited := ruleFor(msg)
	if g.limiter == nil || !limited {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), CheckTimeout)
	defer cancel()

	d, err := g.limiter.Allow(ctx, connID, rule)
	if err != nil {
		logx.Warn("gateway: rate limit check failed, allowing", "conn_id", connID, "error", err.Error())
		return true
	}
	if d.Allowed {
		return true
	}

	g.notifier.Notify(connID, protocol.RateLimitedMsg{RetryAfter: max(ceilSeconds(d.RetryAfter), 1)})
	return false
}

func (g *Gateway) startSearching(connID string, m protocol.StartSearchingMsg) {
	pid, err := g.ids.Extract(m.Profile)
	if err != nil {
		logx.Debug("gateway: rejected profile", "conn_id", connID, "error", err.Error())
		g.notifier.Notify(connID, protocol.ErrorMsg{
			Code:    CodeInvalidProfile,
			Message: "profile carries no persistent id",
		})
		return
	}

	if g.bans != nil {
		ctx, cancel := context.WithTimeout(context.Background(), CheckTimeout)
		st, err := g.bans.Check(ctx, pid)
		cancel()

		switch {
		case err != nil:
			logx.Warn("gateway: ban check failed, allowing", "conn_id", connID, "error", err.Error())
		case st.Banned:
			logx.Info("gateway: banned identity tried to search", "conn_id", connID, "reason", st.Reason)
			g.notifier.Notify(connID, protocol.BannedMsg{
				Duration: ceilSeconds(st.Remaining),
				Reason:   st.Reason,
			})
			return
		}
	}

	g.engine.StartSearching(connID, m.Profile, pid)
}

func (g *Gateway) initiateReport(connID string, m protocol.InitiateReportMsg) {
	shot, err := m.ScreenshotBytes()
	if err != nil {
		logx.Debug("gateway: rejected screenshot", "conn_id", connID, "error", err.Error())
		g.notifier.Notify(connID, protocol.ReportFailedMsg{})
		return
	}

	err = g.engine.InitiateReport(connID, m.PartnerID, shot, m.ChatLog)
	if err != nil && !errors.Is(err, session.ErrInvalidReport) {
		logx.Warn("gateway: report initiation failed", "conn_id", connID, "error", err.Error())
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
