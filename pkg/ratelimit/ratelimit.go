// Package ratelimit provides the single token bucket shared by every fetch
// worker in a run.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates request attempts at a global requests-per-second ceiling.
// It is safe for concurrent use.
//
// A token bucket alone lets a full bucket drain at once and then refill
// within the same second, so the limiter also remembers the last ceil(R)
// dispatch times and holds a dispatch until the oldest of them is a second
// old. No one-second window ever sees more than ceil(R) dispatches.
type Limiter struct {
	limiter *rate.Limiter
	rps     float64

	mu     sync.Mutex
	recent []time.Time // ring of the last Burst() dispatch times
	next   int
}

// New creates a limiter refilling at rps tokens per second with a capacity of
// ceil(rps) (at least 1). The bucket starts empty.
func New(rps float64) (*Limiter, error) {
	if rps <= 0 || math.IsNaN(rps) || math.IsInf(rps, 0) {
		return nil, fmt.Errorf("rate must be a positive number, got %v", rps)
	}

	burst := max(1, int(math.Ceil(rps)))
	l := rate.NewLimiter(rate.Limit(rps), burst)
	l.ReserveN(time.Now(), burst)

	return &Limiter{limiter: l, rps: rps, recent: make([]time.Time, burst)}, nil
}

// Wait blocks until a dispatch is permitted or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	for {
		delay := l.admit(time.Now())
		if delay <= 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter wait: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// admit records a dispatch at now and returns zero, or returns how long to
// wait before the window has room.
func (l *Limiter) admit(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	oldest := l.recent[l.next]
	if delay := oldest.Add(time.Second).Sub(now); !oldest.IsZero() && delay > 0 {
		return delay
	}
	l.recent[l.next] = now
	l.next = (l.next + 1) % len(l.recent)
	return 0
}

// Rate returns the configured refill rate.
func (l *Limiter) Rate() float64 {
	return l.rps
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int {
	return l.limiter.Burst()
}
