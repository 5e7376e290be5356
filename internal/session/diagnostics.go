package session

import (
	"github.com/whisper/rendezvous/internal/logx"
	"github.com/whisper/rendezvous/internal/metrics"
)

// Reason says why an event produced no transition.
type Reason string

const (
	ReasonUnknownConnection   Reason = "unknown_connection"
	ReasonDuplicateConnection Reason = "duplicate_connection"
	ReasonInvalidState        Reason = "invalid_state"
	ReasonInvalidProfile      Reason = "invalid_profile"
	ReasonInvalidMessage      Reason = "invalid_message"
	ReasonInvalidReport       Reason = "invalid_report"
	ReasonStaleEntry          Reason = "stale_entry"
	ReasonMissingRoom         Reason = "missing_room"
	ReasonMissingPartner      Reason = "missing_partner"
	ReasonMissingTarget       Reason = "missing_target"
)

// Diagnostic describes an event the engine dropped, or a stale reference it
// healed. None of these are faults; they are the ordinary noise of clients
// racing each other.
type Diagnostic struct {
	Reason Reason
	ConnID string
	Event  string
	Detail string
}

// LogDiagnostic is the default diagnostics hook.
func LogDiagnostic(d Diagnostic) {
	logx.Debug("session event ignored",
		"reason", string(d.Reason),
		"conn_id", d.ConnID,
		"event", d.Event,
		"detail", d.Detail,
	)
}

func countDiagnostic(d Diagnostic) {
	metrics.IgnoredEventsTotal.WithLabelValues(string(d.Reason)).Inc()
}
