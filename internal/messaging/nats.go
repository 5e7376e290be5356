// Package messaging wraps the NATS connection shared by the rendezvous server
// and the reporter service: connection lifecycle, subjects, request/reply
// and queue-group subscriptions.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/whisper/rendezvous/internal/logx"
)

// Subjects and queue groups.
const (
	SubjectReportSubmit = "report.submit"

	QueueReporters = "reporters"
)

// Client wraps a NATS connection and tracks its subscriptions for Close.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int // -1 for infinite
}

// DefaultConfig returns local defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "rendezvous",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Connect dials NATS. It fails if the first connection attempt fails.
func Connect(cfg Config) (*Client, error) {
	log := logx.Component("nats")

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("messaging: connect %s: %w", cfg.URL, err)
	}
	log.Info().Str("url", nc.ConnectedUrl()).Str("name", cfg.Name).Msg("connected")

	return &Client{conn: nc, subs: make(map[string]*nats.Subscription)}, nil
}

// Publish sends data on subject.
func (c *Client) Publish(subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("messaging: publish %s: %w", subject, err)
	}
	return nil
}

// Request sends data on subject and waits for one reply or ctx.
func (c *Client) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := c.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("messaging: request %s: %w", subject, err)
	}
	return msg.Data, nil
}

// MaxPayload is the largest message the server accepts.
func (c *Client) MaxPayload() int64 {
	return c.conn.MaxPayload()
}

// Subscribe registers handler on subject.
func (c *Client) Subscribe(subject string, handler nats.MsgHandler) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("messaging: subscribe %s: %w", subject, err)
	}
	c.track(subject, sub)
	return nil
}

// QueueSubscribe registers handler on subject within queue, so each message
// reaches one member of the group.
func (c *Client) QueueSubscribe(subject, queue string, handler nats.MsgHandler) error {
	sub, err := c.conn.QueueSubscribe(subject, queue, handler)
	if err != nil {
		return fmt.Errorf("messaging: queue subscribe %s/%s: %w", subject, queue, err)
	}
	c.track(subject+"#"+queue, sub)
	return nil
}

// Flush round-trips to the server so earlier subscriptions are active.
func (c *Client) Flush() error {
	return c.conn.Flush()
}

// Connected reports whether the connection is currently up.
func (c *Client) Connected() bool {
	return c.conn.IsConnected()
}

func (c *Client) track(key string, sub *nats.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.subs[key]; ok {
		_ = old.Unsubscribe()
	}
	c.subs[key] = sub
}

// Close drains every subscription, then the connection.
func (c *Client) Close() {
	log := logx.Component("nats")

	c.mu.Lock()
	for key, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Warn().Err(err).Str("subscription", key).Msg("drain failed")
		}
	}
	c.subs = make(map[string]*nats.Subscription)
	c.mu.Unlock()

	if err := c.conn.Drain(); err != nil {
		log.Warn().Err(err).Msg("connection drain failed")
	}
}
