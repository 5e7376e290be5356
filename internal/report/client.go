//go:generate go run go.uber.org/mock/mockgen -source=client.go -destination=../mocks/mock_report_client.go -package=mocks

package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/whisper/rendezvous/internal/logx"
	"github.com/whisper/rendezvous/internal/messaging"
)

// ErrTooLarge is returned when a report does not fit in one request even
// without its screenshot.
var ErrTooLarge = errors.New("report: too large")

// Requester sends one request and waits for its reply.
type Requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	MaxPayload() int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithScreenshots uploads screenshots to s before submitting, so only the
// object key travels with the report.
func WithScreenshots(s ScreenshotStore) ClientOption {
	return func(c *Client) { c.shots = s }
}

// Client submits reports to the reporter service over NATS request/reply.
type Client struct {
	nc    Requester
	shots ScreenshotStore
	newID func() string
}

// NewClient creates a Client on nc.
func NewClient(nc Requester, opts ...ClientOption) *Client {
	c := &Client{nc: nc, newID: uuid.NewString}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit files r and waits for the reporter's verdict. A transport error,
// a timeout and a refusal are all failures.
//
// Without screenshot storage the screenshot rides inline. When that makes
// the request larger than the server accepts, the report is filed without
// it.
func (c *Client) Submit(ctx context.Context, r Report) error {
	if r.ID == "" {
		r.ID = c.newID()
	}
	if len(r.Screenshot) > 0 && c.shots != nil {
		key := ScreenshotKey(r.ID)
		if err := c.shots.Put(ctx, key, r.Screenshot, "image/png"); err != nil {
			return fmt.Errorf("report: store screenshot: %w", err)
		}
		r.ScreenshotKey = key
		r.Screenshot = nil
	}

	data, err := c.encode(r)
	if errors.Is(err, ErrTooLarge) && len(r.Screenshot) > 0 {
		logx.Warn("report too large, filing without screenshot",
			"report_id", r.ID,
			"screenshot_bytes", len(r.Screenshot),
		)
		r.Screenshot = nil
		data, err = c.encode(r)
	}
	if err != nil {
		return err
	}

	raw, err := c.nc.Request(ctx, messaging.SubjectReportSubmit, data)
	if err != nil {
		return fmt.Errorf("report: submit: %w", err)
	}

	var reply Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("report: decode reply: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("%w: %s", ErrRejected, reply.Error)
	}
	return nil
}

func (c *Client) encode(r Report) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("report: marshal: %w", err)
	}
	if limit := c.nc.MaxPayload(); limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), limit)
	}
	return data, nil
}
