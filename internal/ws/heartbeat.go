package ws

import (
	"time"

	"github.com/gobwas/ws"
)

// HeartbeatConfig holds heartbeat tuning parameters.
type HeartbeatConfig struct {
	Interval time.Duration // how often to ping
	Timeout  time.Duration // grace after a missed interval before eviction
}

// DefaultHeartbeatConfig pings every 30s and evicts after 40s of silence.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// startHeartbeat pings every connection each Interval and evicts those that
// sent nothing for Interval+Timeout. Browsers answer protocol pings with a
// pong on their own, and any frame counts as activity.
func (s *Server) startHeartbeat(cfg HeartbeatConfig) {
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case now := <-ticker.C:
				s.checkConnections(cfg, now)
			}
		}
	}()
}

func (s *Server) checkConnections(cfg HeartbeatConfig, now time.Time) {
	deadline := cfg.Interval + cfg.Timeout

	for _, c := range s.conns.All() {
		if idle := now.Sub(c.LastSeen()); idle > deadline {
			s.logger.Info().
				Str("conn_id", c.ID).
				Dur("idle", idle.Round(time.Second)).
				Msg("heartbeat timeout")
			s.RemoveConnection(c)
			continue
		}

		if err := c.WritePing(); err != nil {
			s.logger.Debug().Err(err).Str("conn_id", c.ID).Msg("heartbeat ping failed")
			s.RemoveConnection(c)
		}
	}
}

// WritePing sends a protocol-level ping frame.
func (c *Connection) WritePing() error {
	return c.writeFrame(ws.NewPingFrame(nil))
}
