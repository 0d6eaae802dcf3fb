package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter throttles login attempts per client key.
type LoginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	every    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter allows burst attempts and then one per interval.
func NewLoginLimiter(interval time.Duration, burst int) *LoginLimiter {
	if burst < 1 {
		burst = 1
	}
	return &LoginLimiter{
		limiters: make(map[string]*limiterEntry),
		every:    rate.Every(interval),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow reports whether key may attempt a login now.
func (l *LoginLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.limiters, k)
		}
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.every, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
