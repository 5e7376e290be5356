// Package ratelimit throttles client events. Per-connection event limits use
// a Redis fixed window (INCR + EXPIRE) so they survive reconnect storms on
// the same connection id; connection attempts per IP are limited in process
// with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/rendezvous/internal/logx"
)

// Rule is one limit: at most Limit hits per Window under keys starting
// with Key.
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

var (
	// RuleChat allows 5 chat messages per 10 seconds per connection.
	RuleChat = Rule{Key: "rl:chat:", Limit: 5, Window: 10 * time.Second}

	// RuleSearch allows 10 start-searching requests per minute per connection.
	RuleSearch = Rule{Key: "rl:search:", Limit: 10, Window: time.Minute}

	// RuleSignal allows 120 offer/answer/ice-candidate frames per 10 seconds
	// per connection; trickle ICE is bursty.
	RuleSignal = Rule{Key: "rl:signal:", Limit: 120, Window: 10 * time.Second}
)

// Decision is the outcome of one check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // set when not allowed
}

// Limiter checks rules against Redis.
type Limiter struct {
	client redis.Cmdable
}

// NewLimiter creates a Limiter backed by client.
func NewLimiter(client redis.Cmdable) *Limiter {
	return &Limiter{client: client}
}

// Allow counts one hit for identifier under rule.
//
// Redis errors fail open: the hit is allowed and the error returned so the
// caller can log it.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (Decision, error) {
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("ratelimit: incr %s: %w", key, err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			// A key without TTL would block the identifier forever.
			l.client.Del(ctx, key)
			return Decision{Allowed: true}, fmt.Errorf("ratelimit: expire %s: %w", key, err)
		}
	}

	if int(count) <= rule.Limit {
		return Decision{Allowed: true}, nil
	}

	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = rule.Window
	}
	return Decision{Allowed: false, RetryAfter: ttl}, nil
}

// Remaining returns how many hits identifier has left in the current window.
func (l *Limiter) Remaining(ctx context.Context, identifier string, rule Rule) (int, error) {
	key := rule.Key + identifier

	count, err := l.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return rule.Limit, nil
	}
	if err != nil {
		return rule.Limit, fmt.Errorf("ratelimit: get %s: %w", key, err)
	}
	return max(rule.Limit-count, 0), nil
}

// Reset forgets every counter held for identifier.
func (l *Limiter) Reset(ctx context.Context, identifier string) {
	for _, rule := range []Rule{RuleChat, RuleSearch, RuleSignal} {
		if err := l.client.Del(ctx, rule.Key+identifier).Err(); err != nil {
			logx.Debug("ratelimit reset failed", "key", rule.Key+identifier, "error", err.Error())
		}
	}
}
