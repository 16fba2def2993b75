// Package ratelimit implements per-key token bucket rate limiting.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxKeys bounds the number of tracked keys. When exceeded, all buckets are
// dropped and refill from full.
const maxKeys = 10000

// Limiter rate-limits independently per key (a tenant ID in practice).
// A zero rate disables limiting.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// New creates a limiter allowing perSecond events per key with the given
// burst. A non-positive perSecond disables limiting; a non-positive burst
// defaults to one second's worth of events.
func New(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = max(1, int(perSecond))
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

// Enabled reports whether the limiter restricts anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.rate > 0
}

// Allow reports whether one event for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}
	return l.get(key).Allow()
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok = l.limiters[key]; ok {
		return limiter
	}
	if len(l.limiters) >= maxKeys {
		l.limiters = make(map[string]*rate.Limiter)
	}
	limiter = rate.NewLimiter(l.rate, l.burst)
	l.limiters[key] = limiter
	return limiter
}
