package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/whisper/rendezvous/internal/logx"
	"github.com/whisper/rendezvous/internal/metrics"
	"github.com/whisper/rendezvous/internal/protocol"
	"github.com/whisper/rendezvous/internal/report"
)

// ErrInvalidReport is returned when a report is not filed from inside a room
// against the current partner by two users with a known identity.
var ErrInvalidReport = errors.New("session: invalid report")

// InitiateReport ends connID's pairing with partnerID, returns the caller to
// idle, requeues the partner, and only then hands the report to the
// Reporter in the background. The outcome is delivered to connID alone.
//
// An invalid report changes nothing and answers report-failed right away.
func (e *Engine) InitiateReport(connID, partnerID string, screenshot []byte, chatLog json.RawMessage) error {
	var (
		r      report.Report
		err    error
		submit bool
	)

	e.run(func(out *outbox) {
		r, err = e.prepareReport(connID, partnerID)
		if err != nil {
			out.send(connID, protocol.ReportFailedMsg{})
			out.diagnose(Diagnostic{Reason: ReasonInvalidReport, ConnID: connID, Event: protocol.TypeInitiateReport, Detail: err.Error()})
			metrics.ReportsTotal.WithLabelValues("rejected").Inc()
			return
		}
		r.Screenshot = screenshot
		r.ChatLog = chatLog

		u, _ := e.users.get(connID)
		e.exit(out, u, TriggerReport)

		if e.closing {
			out.send(connID, protocol.ReportFailedMsg{})
			metrics.ReportsTotal.WithLabelValues("failure").Inc()
			return
		}
		e.inflight.Add(1)
		submit = true
	})

	if submit {
		go e.submit(connID, r)
	}
	return err
}

func (e *Engine) prepareReport(connID, partnerID string) (report.Report, error) {
	u, ok := e.users.get(connID)
	if !ok {
		return report.Report{}, fmt.Errorf("%w: unknown connection", ErrInvalidReport)
	}
	if u.State != StateInChat {
		return report.Report{}, fmt.Errorf("%w: not in chat", ErrInvalidReport)
	}
	room, ok := e.rooms.get(u.RoomID)
	if !ok {
		return report.Report{}, fmt.Errorf("%w: room %s not found", ErrInvalidReport, u.RoomID)
	}
	if pid, _ := room.Partner(connID); pid != partnerID {
		return report.Report{}, fmt.Errorf("%w: %s is not the current partner", ErrInvalidReport, partnerID)
	}
	partner, ok := e.users.get(partnerID)
	if !ok {
		return report.Report{}, fmt.Errorf("%w: partner gone", ErrInvalidReport)
	}
	if u.PersistentID == "" || partner.PersistentID == "" {
		return report.Report{}, fmt.Errorf("%w: missing persistent identity", ErrInvalidReport)
	}

	return report.Report{
		ReporterID:   u.PersistentID,
		ReportedID:   partner.PersistentID,
		ReportedConn: partnerID,
		RoomID:       room.ID,
		Transcript:   e.transcripts.Snapshot(room.ID),
		CreatedAt:    e.now(),
	}, nil
}

func (e *Engine) submit(connID string, r report.Report) {
	defer e.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), e.reportTimeout)
	defer cancel()

	if err := e.reporter.Submit(ctx, r); err != nil {
		logx.Warn("report submission failed",
			"conn_id", connID,
			"room_id", r.RoomID,
			"error", err.Error(),
		)
		metrics.ReportsTotal.WithLabelValues("failure").Inc()
		e.notify(connID, protocol.ReportFailedMsg{})
		return
	}
	metrics.ReportsTotal.WithLabelValues("success").Inc()
	e.notify(connID, protocol.ReportSuccessfulMsg{})
}
