package chat

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces calls to a shared backend quota.
type RateLimiter interface {
	// Wait blocks until the minimum interval since the previous call has elapsed.
	Wait(ctx context.Context) error
	// APICalled records that a call was made.
	APICalled()
}

// Limiter is a RateLimiter allowing one call per interval.
// A single Limiter may be shared by several chats.
type Limiter struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	lastCall time.Time
	calls    int
}

// NewLimiter returns a Limiter that allows one call every interval.
// A non-positive interval disables limiting.
func NewLimiter(interval time.Duration) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{limiter: rate.NewLimiter(limit, 1)}
}

// PerMinute returns a Limiter for the given requests-per-minute quota.
func PerMinute(rpm int) *Limiter {
	if rpm <= 0 {
		return NewLimiter(0)
	}
	return NewLimiter(time.Minute / time.Duration(rpm))
}

func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

func (l *Limiter) APICalled() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastCall = time.Now()
	l.calls++
}

// Stats returns the number of recorded calls and the time of the last one.
func (l *Limiter) Stats() (calls int, last time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls, l.lastCall
}
