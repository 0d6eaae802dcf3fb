package notify

import (
	"math"
	"sync"
	"time"
)

// breaker stops delivery to a callback host after consecutive failures and
// lets a single probe through once the cooldown has passed.
type breaker struct {
	mu          sync.Mutex
	open        bool
	probing     bool
	failures    int
	threshold   int
	cooldown    time.Duration
	lastFailure time.Time
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.probing || time.Since(b.lastFailure) <= b.cooldown {
		return false
	}
	b.probing = true
	return true
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
	b.probing = false
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = time.Now()
	b.probing = false
	if b.failures >= b.threshold {
		b.open = true
	}
}

func (b *breaker) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// breakers lazily creates one breaker per host.
type breakers struct {
	mu        sync.Mutex
	byHost    map[string]*breaker
	threshold int
	cooldown  time.Duration
}

func newBreakers(threshold int, cooldown time.Duration) *breakers {
	return &breakers{byHost: make(map[string]*breaker), threshold: threshold, cooldown: cooldown}
}

func (bs *breakers) get(host string) *breaker {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	b, ok := bs.byHost[host]
	if !ok {
		b = &breaker{threshold: bs.threshold, cooldown: bs.cooldown}
		bs.byHost[host] = b
	}
	return b
}

func (bs *breakers) openCount() int {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	n := 0
	for _, b := range bs.byHost {
		if b.isOpen() {
			n++
		}
	}
	return n
}

// backoff returns the wait before retry attempt n (1-based), doubling from
// initial and capped at limit.
func backoff(attempt int, initial, limit time.Duration) time.Duration {
	if attempt < 1 {
		return initial
	}
	d := float64(initial) * math.Pow(2, float64(attempt-1))
	if d > float64(limit) {
		return limit
	}
	return time.Duration(d)
}
