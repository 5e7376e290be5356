package ratelimit

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/whisper/rendezvous/internal/logx"
)

// IPLimiter is a token bucket per client IP for connection attempts.
type IPLimiter struct {
	mu     sync.RWMutex
	limits map[string]*rate.Limiter
	r      rate.Limit
	b      int
}

// NewIPLimiter allows r connection attempts per second per IP with bursts of b.
func NewIPLimiter(r rate.Limit, b int) *IPLimiter {
	return &IPLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
	}
}

// Get returns the limiter for ip, creating it on first use.
func (l *IPLimiter) Get(ip string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limits[ip]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok = l.limits[ip]; !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limits[ip] = lim
	}
	return lim
}

// Allow consumes one token for ip.
func (l *IPLimiter) Allow(ip string) bool {
	return l.Get(ip).Allow()
}

// Sweep drops limiters whose bucket has refilled; those IPs are idle.
func (l *IPLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for ip, lim := range l.limits {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(l.limits, ip)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked IPs.
func (l *IPLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limits)
}

// Run sweeps every interval until ctx is done.
func (l *IPLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := l.Sweep(now); n > 0 {
				logx.Debug("ip limiter sweep", "removed", n, "active", l.Len())
			}
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			ip = "unknown_ip"
		}

		lim := l.Get(ip)
		if !lim.Allow() {
			retry := time.Second
			if l.r > 0 {
				retry = time.Duration(float64(time.Second) / float64(l.r))
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(max(int(retry.Seconds()), 1)))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
