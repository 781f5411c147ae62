package ratelimiter

import (
	"sync"
	"time"
)

// FixedWindowCounter admits up to limit requests per fixed window. The count
// resets when a window elapses, so bursts can cluster around boundaries; the
// sliding variants trade memory or precision to avoid that.
type FixedWindowCounter struct {
	limit  int
	window time.Duration

	mu    sync.Mutex
	count int
	start time.Time // beginning of the current window
}

// NewFixedWindowCounter admits limit requests per window.
func NewFixedWindowCounter(limit int, window time.Duration) *FixedWindowCounter {
	return &FixedWindowCounter{
		limit:  limit,
		window: window,
		start:  time.Now(),
	}
}

func (c *FixedWindowCounter) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.After(c.start.Add(c.window)) {
		c.start = now
		c.count = 0
	}

	if c.count >= c.limit {
		return false
	}
	c.count++
	return true
}
