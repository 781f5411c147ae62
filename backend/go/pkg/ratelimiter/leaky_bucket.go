package ratelimiter

import (
	"sync"
	"time"
)

// LeakyBucket smooths bursts into a steady outflow: each request adds a unit
// to the bucket and the bucket drains at a constant rate. A full bucket
// rejects new requests.
type LeakyBucket struct {
	rate     float64 // drain rate in requests per second
	capacity float64

	mu        sync.Mutex
	level     float64
	lastDrain time.Time
}

// NewLeakyBucket drains rate requests per second from a bucket holding at
// most capacity queued requests.
func NewLeakyBucket(rate float64, capacity int) *LeakyBucket {
	return &LeakyBucket{
		rate:      rate,
		capacity:  float64(capacity),
		lastDrain: time.Now(),
	}
}

func (b *LeakyBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	drained := now.Sub(b.lastDrain).Seconds() * b.rate
	if drained > 0 {
		b.level -= drained
		if b.level < 0 {
			b.level = 0
		}
		b.lastDrain = now
	}

	if b.level >= b.capacity {
		return false
	}
	b.level++
	return true
}
