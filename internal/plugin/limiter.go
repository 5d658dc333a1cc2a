package plugin

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter allows at most one event per interval for each key.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
}

// NewLimiter returns a per-key limiter. A non-positive interval allows everything.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{interval: interval, limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether an event for key may happen now, consuming the allowance.
func (l *Limiter) Allow(key string) bool {
	return l.AllowAt(key, time.Now())
}

// AllowAt is Allow at an explicit time.
func (l *Limiter) AllowAt(key string, now time.Time) bool {
	if l.interval <= 0 {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.AllowN(now, 1)
}
