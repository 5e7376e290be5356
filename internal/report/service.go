//go:generate go run go.uber.org/mock/mockgen -source=service.go -destination=../mocks/mock_report_service.go -package=mocks

package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/whisper/rendezvous/internal/chat"
	"github.com/whisper/rendezvous/internal/logx"
)

// HandleTimeout bounds the work done for one submission.
const HandleTimeout = 15 * time.Second

var ErrInvalid = errors.New("report: invalid")

// Record is a report as persisted.
type Record struct {
	ID            string
	ReporterID    string
	ReportedID    string
	RoomID        string
	ScreenshotKey string // object key when uploaded
	Screenshot    []byte // inline copy when there is no object storage
	ChatLog       json.RawMessage
	Transcript    []chat.Line
	Flags         []string // triage flags raised on the reported user's lines
	CreatedAt     time.Time
}

// Store persists records.
type Store interface {
	Create(ctx context.Context, rec *Record) error
}

// ScreenshotStore keeps screenshot images outside the database.
type ScreenshotStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// BanRecorder counts a report against an identity and says whether that
// identity is now banned.
type BanRecorder interface {
	ReportAndCheck(ctx context.Context, id string) (bool, time.Duration, error)
}

// Triage flags suspicious texts so reviewers can sort reports.
type Triage interface {
	Scan(texts []string) []string
}

// Option configures a Service.
type Option func(*Service)

// WithTriage attaches flags from t to every record.
func WithTriage(t Triage) Option {
	return func(s *Service) { s.triage = t }
}

// Service validates, stores and acts on submitted reports.
type Service struct {
	store  Store
	shots  ScreenshotStore // nil keeps screenshots inline
	bans   BanRecorder     // nil disables auto-bans
	triage Triage
	newID  func() string
}

// NewService creates a Service. shots and bans may be nil.
func NewService(store Store, shots ScreenshotStore, bans BanRecorder, opts ...Option) *Service {
	s := &Service{store: store, shots: shots, bans: bans, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScreenshotKey is the object key for a report's screenshot.
func ScreenshotKey(reportID string) string {
	return "reports/" + reportID + ".png"
}

// Handle files r. Validation failures wrap ErrInvalid.
func (s *Service) Handle(ctx context.Context, r Report) (*Record, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	id := r.ID
	if id == "" {
		id = s.newID()
	}
	rec := &Record{
		ID:         id,
		ReporterID: r.ReporterID,
		ReportedID: r.ReportedID,
		RoomID:     r.RoomID,
		ChatLog:    r.ChatLog,
		Transcript: r.Transcript,
		CreatedAt:  r.CreatedAt,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if s.triage != nil {
		rec.Flags = s.triage.Scan(reportedLines(r))
	}

	switch {
	case r.ScreenshotKey != "":
		rec.ScreenshotKey = r.ScreenshotKey
	case len(r.Screenshot) > 0:
		if s.shots != nil {
			key := ScreenshotKey(rec.ID)
			if err := s.shots.Put(ctx, key, r.Screenshot, "image/png"); err != nil {
				return nil, fmt.Errorf("report: store screenshot: %w", err)
			}
			rec.ScreenshotKey = key
		} else {
			rec.Screenshot = r.Screenshot
		}
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	if s.bans != nil {
		banned, d, err := s.bans.ReportAndCheck(ctx, rec.ReportedID)
		switch {
		case err != nil:
			logx.Error(err, "ban check failed", "report_id", rec.ID)
		case banned:
			logx.Info("identity banned after reports",
				"report_id", rec.ID,
				"reported_id", rec.ReportedID,
				"duration", d.String(),
			)
		}
	}
	return rec, nil
}

// reportedLines returns the transcript texts sent by the reported user, or
// every text when the sender is unknown.
func reportedLines(r Report) []string {
	texts := make([]string, 0, len(r.Transcript))
	for _, l := range r.Transcript {
		if r.ReportedConn == "" || l.From == r.ReportedConn {
			texts = append(texts, l.Text)
		}
	}
	return texts
}

// HandleMessage decodes one submission and builds the reply to send back.
func (s *Service) HandleMessage(ctx context.Context, data []byte) Reply {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Reply{Error: "malformed report"}
	}

	rec, err := s.Handle(ctx, r)
	if errors.Is(err, ErrInvalid) {
		return Reply{Error: err.Error()}
	}
	if err != nil {
		logx.Error(err, "report not filed", "room_id", r.RoomID)
		return Reply{Error: "internal error"}
	}

	logx.Info("report filed", "report_id", rec.ID, "room_id", rec.RoomID, "flags", strings.Join(rec.Flags, ","))
	return Reply{OK: true}
}

// Responder is how a handled submission is answered.
type Responder interface {
	Respond(data []byte) error
}

// Serve answers one NATS request.
func (s *Service) Serve(m *nats.Msg) {
	s.ServeRequest(m.Data, m)
}

// ServeRequest handles data and sends the reply through to.
func (s *Service) ServeRequest(data []byte, to Responder) {
	ctx, cancel := context.WithTimeout(context.Background(), HandleTimeout)
	defer cancel()

	reply := s.HandleMessage(ctx, data)
	out, err := json.Marshal(reply)
	if err != nil {
		logx.Error(err, "marshal reply")
		return
	}
	if err := to.Respond(out); err != nil {
		logx.Warn("respond failed", "error", err.Error())
	}
}
