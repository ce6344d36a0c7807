package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter keeps one token bucket per client in memory
type LocalLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	anonLimit  rate.Limit
	authLimit  rate.Limit
	anonPerMin int
	authPerMin int
	burst      int
}

// NewLocalLimiter creates a limiter from per-minute budgets
func NewLocalLimiter(anonPerMinute, authPerMinute, burst int) *LocalLimiter {
	if burst <= 0 {
		burst = 10
	}
	return &LocalLimiter{
		limiters:   make(map[string]*rate.Limiter),
		anonLimit:  rate.Limit(float64(anonPerMinute) / 60),
		authLimit:  rate.Limit(float64(authPerMinute) / 60),
		anonPerMin: anonPerMinute,
		authPerMin: authPerMinute,
		burst:      burst,
	}
}

// getLimiter returns the bucket for key, creating it on first use
func (l *LocalLimiter) getLimiter(key string, priority Priority) *rate.Limiter {
	key = priority.String() + ":" + key

	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	limit := l.anonLimit
	if priority == PriorityHigh {
		limit = l.authLimit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(limit, l.burst)
	l.limiters[key] = limiter
	return limiter
}

// Allow implements Limiter
func (l *LocalLimiter) Allow(ctx context.Context, key string, priority Priority) (Decision, error) {
	limiter := l.getLimiter(key, priority)
	perMin := l.anonPerMin
	if priority == PriorityHigh {
		perMin = l.authPerMin
	}

	r := limiter.Reserve()
	if !r.OK() {
		return Decision{Allowed: false, Limit: perMin}, nil
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return Decision{Allowed: false, Limit: perMin, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true, Limit: perMin, Remaining: int(limiter.Tokens())}, nil
}

// Size returns the number of tracked clients
func (l *LocalLimiter) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}

// Prune drops buckets that have refilled completely, which are
// indistinguishable from new ones
func (l *LocalLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for key, limiter := range l.limiters {
		if limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, key)
		}
	}
}
