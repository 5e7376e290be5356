// Package protocol defines the WebSocket wire protocol spoken between the
// browser client and the rendezvous server. Every frame is a JSON object with a
// "type" discriminator; inbound and outbound frames form two closed sets of
// variants so a handler can never receive a shape it did not ask for.
package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeStartSearching = "start-searching"
	TypeStopSearching  = "stop-searching"
	TypeSkipChat       = "skip-chat"
	TypeStopChat       = "stop-chat"
	TypeOffer          = "offer"
	TypeAnswer         = "answer"
	TypeIceCandidate   = "ice-candidate"
	TypeChatMessage    = "chat-message"
	TypeInitiateReport = "initiate-report"
	TypePing           = "ping"
)

// Server -> Client message types. Offer, answer, ice-candidate and
// chat-message reuse the inbound names.
const (
	TypeSessionCreated      = "session-created"
	TypeMatchFound          = "match-found"
	TypePartnerDisconnected = "partner-disconnected"
	TypeAutoSearching       = "auto-searching"
	TypeReportSuccessful    = "report-successful"
	TypeReportFailed        = "report-failed"
	TypeRateLimited         = "rate-limited"
	TypeBanned              = "banned"
	TypeError               = "error"
	TypePong                = "pong"
)

// MaxScreenshotBytes caps the decoded screenshot attached to a report.
const MaxScreenshotBytes = 2 << 20

// MaxChatLogBytes caps the client transcript attached to a report.
const MaxChatLogBytes = 64 << 10

// ErrInvalidPayload is wrapped by every parse or validation failure.
var ErrInvalidPayload = errors.New("protocol: invalid payload")

var validate = validator.New()

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the whole frame and extracts only the "type" field.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server variants
// ---------------------------------------------------------------------------

// ClientMessage is implemented by every inbound variant.
type ClientMessage interface {
	ClientType() string
}

// StartSearchingMsg asks to enter the waiting pool. Profile is opaque display
// data shown to the future partner; it also carries the persistent identity.
type StartSearchingMsg struct {
	Profile json.RawMessage `json:"profile" validate:"required"`
}

// StopSearchingMsg leaves the waiting pool.
type StopSearchingMsg struct{}

// SkipChatMsg ends the current pairing and immediately searches again.
type SkipChatMsg struct{}

// StopChatMsg ends the current pairing and goes idle.
type StopChatMsg struct{}

// OfferMsg carries a WebRTC session description offer for the partner.
type OfferMsg struct {
	PartnerID string          `json:"partnerId" validate:"required"`
	SDP       json.RawMessage `json:"sdp" validate:"required"`
}

// AnswerMsg carries a WebRTC session description answer for the partner.
type AnswerMsg struct {
	PartnerID string          `json:"partnerId" validate:"required"`
	SDP       json.RawMessage `json:"sdp" validate:"required"`
}

// IceCandidateMsg carries one ICE candidate for the partner.
type IceCandidateMsg struct {
	PartnerID string          `json:"partnerId" validate:"required"`
	Candidate json.RawMessage `json:"candidate" validate:"required"`
}

// ChatMessageMsg is a text message for the partner.
type ChatMessageMsg struct {
	PartnerID string `json:"partnerId" validate:"required"`
	Message   string `json:"message" validate:"required"`
}

// InitiateReportMsg reports the current partner. Screenshot is base64, with
// or without a data URL prefix. ChatLog is the client's own transcript.
type InitiateReportMsg struct {
	PartnerID  string          `json:"partnerId" validate:"required"`
	Screenshot string          `json:"screenshot"`
	ChatLog    json.RawMessage `json:"chatLog"`
}

// PingMsg is a client-initiated keepalive.
type PingMsg struct{}

func (StartSearchingMsg) ClientType() string { return TypeStartSearching }
func (StopSearchingMsg) ClientType() string  { return TypeStopSearching }
func (SkipChatMsg) ClientType() string       { return TypeSkipChat }
func (StopChatMsg) ClientType() string       { return TypeStopChat }
func (OfferMsg) ClientType() string          { return TypeOffer }
func (AnswerMsg) ClientType() string         { return TypeAnswer }
func (IceCandidateMsg) ClientType() string   { return TypeIceCandidate }
func (ChatMessageMsg) ClientType() string    { return TypeChatMessage }
func (InitiateReportMsg) ClientType() string { return TypeInitiateReport }
func (PingMsg) ClientType() string           { return TypePing }

// ScreenshotBytes decodes the screenshot. An empty screenshot yields nil.
func (m InitiateReportMsg) ScreenshotBytes() ([]byte, error) {
	raw := m.Screenshot
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "data:") {
		idx := strings.Index(raw, ",")
		if idx < 0 {
			return nil, fmt.Errorf("%w: malformed data url", ErrInvalidPayload)
		}
		raw = raw[idx+1:]
	}
	if base64.StdEncoding.DecodedLen(len(raw)) > MaxScreenshotBytes+3 {
		return nil, fmt.Errorf("%w: screenshot exceeds %d bytes", ErrInvalidPayload, MaxScreenshotBytes)
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot: %v", ErrInvalidPayload, err)
	}
	if len(data) > MaxScreenshotBytes {
		return nil, fmt.Errorf("%w: screenshot exceeds %d bytes", ErrInvalidPayload, MaxScreenshotBytes)
	}
	return data, nil
}

// ---------------------------------------------------------------------------
// Server -> Client variants
// ---------------------------------------------------------------------------

// ServerMessage is implemented by every outbound variant.
type ServerMessage interface {
	ServerType() string
}

// SessionCreatedMsg tells the client its connection identifier.
type SessionCreatedMsg struct {
	ConnectionID string `json:"connectionId"`
}

// MatchFoundMsg announces a new pairing. Exactly one side has Initiator set.
type MatchFoundMsg struct {
	RoomID         string          `json:"roomId"`
	PartnerID      string          `json:"partnerId"`
	Initiator      bool            `json:"initiator"`
	PartnerProfile json.RawMessage `json:"partnerProfile"`
}

// PartnerDisconnectedMsg is sent to both sides when a pairing ends.
type PartnerDisconnectedMsg struct{}

// AutoSearchingMsg tells a client it was put back into the waiting pool.
type AutoSearchingMsg struct{}

// RelayedOfferMsg is an offer forwarded from SenderID.
type RelayedOfferMsg struct {
	SDP      json.RawMessage `json:"sdp"`
	SenderID string          `json:"senderId"`
}

// RelayedAnswerMsg is an answer forwarded from SenderID.
type RelayedAnswerMsg struct {
	SDP      json.RawMessage `json:"sdp"`
	SenderID string          `json:"senderId"`
}

// RelayedIceCandidateMsg is an ICE candidate forwarded from SenderID.
type RelayedIceCandidateMsg struct {
	Candidate json.RawMessage `json:"candidate"`
	SenderID  string          `json:"senderId"`
}

// RelayedChatMsg is a chat message forwarded from the partner.
type RelayedChatMsg struct {
	Message string `json:"message"`
	From    string `json:"from"`
}

// ReportSuccessfulMsg confirms the report collaborator accepted a report.
type ReportSuccessfulMsg struct{}

// ReportFailedMsg signals that a report was rejected or could not be filed.
type ReportFailedMsg struct{}

// RateLimitedMsg is sent when the client exceeded a per-event limit.
type RateLimitedMsg struct {
	RetryAfter int `json:"retryAfter"`
}

// BannedMsg is sent when the client's persistent identity is banned.
type BannedMsg struct {
	Duration int    `json:"duration"`
	Reason   string `json:"reason"`
}

// ErrorMsg communicates a malformed or unsupported frame.
type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg answers PingMsg.
type PongMsg struct{}

func (SessionCreatedMsg) ServerType() string      { return TypeSessionCreated }
func (MatchFoundMsg) ServerType() string          { return TypeMatchFound }
func (PartnerDisconnectedMsg) ServerType() string { return TypePartnerDisconnected }
func (AutoSearchingMsg) ServerType() string       { return TypeAutoSearching }
func (RelayedOfferMsg) ServerType() string        { return TypeOffer }
func (RelayedAnswerMsg) ServerType() string       { return TypeAnswer }
func (RelayedIceCandidateMsg) ServerType() string { return TypeIceCandidate }
func (RelayedChatMsg) ServerType() string         { return TypeChatMessage }
func (ReportSuccessfulMsg) ServerType() string    { return TypeReportSuccessful }
func (ReportFailedMsg) ServerType() string        { return TypeReportFailed }
func (RateLimitedMsg) ServerType() string         { return TypeRateLimited }
func (BannedMsg) ServerType() string              { return TypeBanned }
func (ErrorMsg) ServerType() string               { return TypeError }
func (PongMsg) ServerType() string                { return TypePong }

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed, validated
// client message. The type string is returned even when decoding fails so
// callers can log it.
func ParseClientMessage(data []byte) (string, ClientMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var msg ClientMessage
	switch env.Type {
	case TypeStartSearching:
		msg = &StartSearchingMsg{}
	case TypeStopSearching:
		msg = &StopSearchingMsg{}
	case TypeSkipChat:
		msg = &SkipChatMsg{}
	case TypeStopChat:
		msg = &StopChatMsg{}
	case TypeOffer:
		msg = &OfferMsg{}
	case TypeAnswer:
		msg = &AnswerMsg{}
	case TypeIceCandidate:
		msg = &IceCandidateMsg{}
	case TypeChatMessage:
		msg = &ChatMessageMsg{}
	case TypeInitiateReport:
		msg = &InitiateReportMsg{}
	case TypePing:
		msg = &PingMsg{}
	default:
		return env.Type, nil, fmt.Errorf("%w: unknown client message type %q", ErrInvalidPayload, env.Type)
	}

	if err := json.Unmarshal(env.Raw, msg); err != nil {
		return env.Type, nil, fmt.Errorf("%w: decode %q: %v", ErrInvalidPayload, env.Type, err)
	}
	if err := validate.Struct(msg); err != nil {
		return env.Type, nil, fmt.Errorf("%w: %q: %v", ErrInvalidPayload, env.Type, err)
	}

	// Hand out values, not pointers, so handlers type-switch on plain structs.
	switch m := msg.(type) {
	case *StartSearchingMsg:
		if isNull(m.Profile) {
			return env.Type, nil, fmt.Errorf("%w: %q: profile is null", ErrInvalidPayload, env.Type)
		}
		return env.Type, *m, nil
	case *StopSearchingMsg:
		return env.Type, *m, nil
	case *SkipChatMsg:
		return env.Type, *m, nil
	case *StopChatMsg:
		return env.Type, *m, nil
	case *OfferMsg:
		return env.Type, *m, nil
	case *AnswerMsg:
		return env.Type, *m, nil
	case *IceCandidateMsg:
		return env.Type, *m, nil
	case *ChatMessageMsg:
		return env.Type, *m, nil
	case *InitiateReportMsg:
		if len(m.ChatLog) > MaxChatLogBytes {
			return env.Type, nil, fmt.Errorf("%w: %q: chatLog exceeds %d bytes", ErrInvalidPayload, env.Type, MaxChatLogBytes)
		}
		return env.Type, *m, nil
	default:
		return env.Type, PingMsg{}, nil
	}
}

// NewServerMessage encodes an outbound variant, injecting its "type".
// Raw JSON fields (sdp, candidate, profiles) are passed through untouched.
func NewServerMessage(msg ServerMessage) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	typ, _ := json.Marshal(msg.ServerType())
	fields["type"] = typ

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
