package resilience

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token-bucket rate limiter for outbound HTTP. Tokens refill
// continuously at rate per second up to burst.
type Limiter struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
	now    func() time.Time // for testing
}

// NewLimiter creates a limiter allowing rate requests per second with the
// given burst. A non-positive rate yields an unlimited limiter.
func NewLimiter(rate float64, burst int) *Limiter {
	l := &Limiter{
		rate:  rate,
		burst: float64(burst),
		now:   time.Now,
	}
	l.tokens = l.burst
	l.last = l.now()
	return l
}

// Wait blocks until a token is available or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		d, ok := l.take()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}

// take consumes a token if available, otherwise returns how long to wait
// before trying again.
func (l *Limiter) take() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rate <= 0 {
		return 0, true
	}

	now := l.now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now

	if l.tokens >= 1 {
		l.tokens--
		return 0, true
	}
	deficit := 1 - l.tokens
	return time.Duration(deficit / l.rate * float64(time.Second)), false
}
