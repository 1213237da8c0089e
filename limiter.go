package blogadmin

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter rate-limits failed login attempts per IP address. Each IP
// gets a token bucket of max tokens refilled over window.
type LoginLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*visitor
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastPrune time.Time
	now       func() time.Time
}

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter creates a LoginLimiter that allows max attempts per window.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		limiters: make(map[string]*visitor),
		limit:    rate.Limit(float64(max) / window.Seconds()),
		burst:    max,
		window:   window,
		now:      time.Now,
	}
}

// Check returns true if the IP has not exceeded the rate limit.
// It does not record an attempt; call Record separately on failure.
func (l *LoginLimiter) Check(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	return l.visitor(ip, now).TokensAt(now) >= 1
}

// Record registers a failed login attempt for the given IP.
func (l *LoginLimiter) Record(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.visitor(ip, now).AllowN(now, 1)
}

// visitor returns the limiter for ip. Callers hold l.mu.
func (l *LoginLimiter) visitor(ip string, now time.Time) *rate.Limiter {
	if now.Sub(l.lastPrune) > l.window {
		l.prune(now)
	}
	v, ok := l.limiters[ip]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = v
	}
	v.lastSeen = now
	return v.lim
}

// prune drops IPs idle for longer than a window; their buckets are full
// again so forgetting them changes nothing.
func (l *LoginLimiter) prune(now time.Time) {
	for ip, v := range l.limiters {
		if now.Sub(v.lastSeen) > l.window {
			delete(l.limiters, ip)
		}
	}
	l.lastPrune = now
}

// size returns the number of tracked IPs.
func (l *LoginLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
