// Package ratelimit is a per-key token-bucket limiter in front of the
// gateway's /call endpoint: a requests-per-minute budget keyed by caller,
// built on golang.org/x/time/rate.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out one rate.Limiter per key (typically a remote IP or an
// authenticated user ID), lazily created on first use and evicted after a
// period of inactivity so long-lived gateways don't accumulate one
// limiter per transient client forever.
type Limiter struct {
	mu         sync.Mutex
	limiters   map[string]*entry
	ratePerSec rate.Limit
	burst      int
	evictAfter time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a Limiter allowing requestsPerMinute sustained traffic per
// key, with a burst equal to requestsPerMinute/6 (10 seconds of headroom),
// minimum 1.
func New(requestsPerMinute int) *Limiter {
	burst := requestsPerMinute / 6
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters:   make(map[string]*entry),
		ratePerSec: rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:      burst,
		evictAfter: 10 * time.Minute,
	}
}

// Allow reports whether a request under key may proceed right now,
// consuming one token if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	e, ok := l.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.ratePerSec, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()

	return e.limiter.Allow()
}

// Sweep removes limiters idle for longer than evictAfter. Callers run it
// periodically (e.g. from a ticker) to bound memory use.
func (l *Limiter) Sweep() {
	cutoff := time.Now().Add(-l.evictAfter)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}
