package remote

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// limiter is a token bucket shared by every call a Client makes.
type limiter struct {
	stopCh   chan struct{}
	tokens   int
	capacity int
	mu       sync.Mutex
	stopOnce sync.Once
}

// newLimiter creates a bucket refilled at requestsPerMinute.
func newLimiter(requestsPerMinute int) *limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}

	l := &limiter{
		tokens:   requestsPerMinute,
		capacity: requestsPerMinute,
		stopCh:   make(chan struct{}),
	}
	go l.refill(time.Minute / time.Duration(requestsPerMinute))
	return l
}

// wait blocks until a token is available or ctx is done.
func (l *limiter) wait(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.tryAcquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *limiter) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tokens > 0 {
		l.tokens--
		return true
	}
	return false
}

func (l *limiter) refill(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.mu.Lock()
			if l.tokens < l.capacity {
				l.tokens++
			}
			l.mu.Unlock()
		}
	}
}

func (l *limiter) close() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}
