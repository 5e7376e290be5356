// Package ban keeps bans and report counters per persistent identity in
// Redis. Every record expires on its own:
//
//	ban:<id>       reason, TTL = ban duration
//	reports:<id>   reports received in the current window
//	offenses:<id>  bans applied in the current window
package ban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	BanPrefix     = "ban:"
	ReportsPrefix = "reports:"
	OffensePrefix = "offenses:"

	// Escalating ban durations.
	Ban15Min  = 15 * time.Minute
	Ban1Hour  = time.Hour
	Ban24Hour = 24 * time.Hour

	// Window is how long report and offense counters live after their
	// first increment.
	Window = 24 * time.Hour

	// AutoBanThreshold is the number of reports within Window that bans
	// the reported identity.
	AutoBanThreshold = 3

	ReasonMultipleReports = "multiple_reports"
)

// Status is the ban state of one identity.
type Status struct {
	Banned    bool
	Remaining time.Duration
	Reason    string
}

// Store manages bans in Redis.
type Store struct {
	client redis.Cmdable
}

// NewStore creates a Store on client.
func NewStore(client redis.Cmdable) *Store {
	return &Store{client: client}
}

// Check returns the current ban state of id. Callers should fail open on
// error.
func (s *Store) Check(ctx context.Context, id string) (Status, error) {
	key := BanPrefix + id

	reason, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("ban: get %s: %w", key, err)
	}

	st := Status{Banned: true, Reason: reason}
	// A ban whose TTL can't be read is still a ban.
	if ttl, err := s.client.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		st.Remaining = ttl
	}
	return st, nil
}

// Ban bans id for duration.
func (s *Store) Ban(ctx context.Context, id string, duration time.Duration, reason string) error {
	if err := s.client.Set(ctx, BanPrefix+id, reason, duration).Err(); err != nil {
		return fmt.Errorf("ban: set: %w", err)
	}
	return nil
}

// Unban lifts id's ban immediately.
func (s *Store) Unban(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, BanPrefix+id).Err(); err != nil {
		return fmt.Errorf("ban: del: %w", err)
	}
	return nil
}

// escalation maps the nth ban in a window to its duration.
func escalation(offense int64) time.Duration {
	switch {
	case offense <= 1:
		return Ban15Min
	case offense == 2:
		return Ban1Hour
	default:
		return Ban24Hour
	}
}

// incrWindow increments key and starts its TTL on the first increment only,
// so the window does not slide.
func (s *Store) incrWindow(ctx context.Context, key string) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, Window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ban: incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Offenses returns how many bans id received in the current window.
func (s *Store) Offenses(ctx context.Context, id string) (int, error) {
	return s.counter(ctx, OffensePrefix+id)
}

// Reports returns how many reports id received in the current window.
func (s *Store) Reports(ctx context.Context, id string) (int, error) {
	return s.counter(ctx, ReportsPrefix+id)
}

func (s *Store) counter(ctx context.Context, key string) (int, error) {
	n, err := s.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ban: get %s: %w", key, err)
	}
	return n, nil
}

// Escalate records an offense for id and bans it for 15 minutes, one hour
// or a day depending on how many offenses the window already holds.
func (s *Store) Escalate(ctx context.Context, id, reason string) (time.Duration, error) {
	n, err := s.incrWindow(ctx, OffensePrefix+id)
	if err != nil {
		return 0, err
	}
	d := escalation(n)
	if err := s.Ban(ctx, id, d, reason); err != nil {
		return 0, err
	}
	return d, nil
}

// ReportAndCheck counts one report against id. From the AutoBanThreshold-th
// report in a window on, every report escalates a ban.
func (s *Store) ReportAndCheck(ctx context.Context, id string) (bool, time.Duration, error) {
	n, err := s.incrWindow(ctx, ReportsPrefix+id)
	if err != nil {
		return false, 0, err
	}
	if n < AutoBanThreshold {
		return false, 0, nil
	}
	d, err := s.Escalate(ctx, id, ReasonMultipleReports)
	if err != nil {
		return false, 0, err
	}
	return true, d, nil
}
