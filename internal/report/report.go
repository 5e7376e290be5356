// Package report carries abuse reports from the rendezvous server to the
// reporter service and persists them there. The server side only needs
// Client; Service, Store and the migrations run inside cmd/reporter.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/whisper/rendezvous/internal/chat"
)

// ErrRejected is returned when the reporter service refused a report.
var ErrRejected = errors.New("report: rejected")

var validate = validator.New()

// Report is one abuse report filed from inside a room.
type Report struct {
	ID            string          `json:"id,omitempty" validate:"omitempty,uuid"`
	ReporterID    string          `json:"reporterId" validate:"required"`
	ReportedID    string          `json:"reportedId" validate:"required,nefield=ReporterID"`
	ReportedConn  string          `json:"reportedConn,omitempty"` // connection id of the reported user, the From of their lines
	RoomID        string          `json:"roomId"`
	Screenshot    []byte          `json:"screenshot,omitempty"`
	ScreenshotKey string          `json:"screenshotKey,omitempty"` // set when the sender already uploaded the screenshot
	ChatLog       json.RawMessage `json:"chatLog,omitempty"`       // as supplied by the reporting client
	Transcript    []chat.Line     `json:"transcript"`              // as relayed by the server
	CreatedAt     time.Time       `json:"createdAt"`
}

// Validate checks the fields the reporter service relies on.
func (r *Report) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if r.ScreenshotKey != "" && r.ScreenshotKey != ScreenshotKey(r.ID) {
		return fmt.Errorf("report: screenshot key %q does not belong to report %q", r.ScreenshotKey, r.ID)
	}
	return nil
}

// Reply is the reporter service's answer to a submission.
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
