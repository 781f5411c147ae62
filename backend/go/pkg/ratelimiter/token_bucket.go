package ratelimiter

import (
	"sync"
	"time"
)

// TokenBucket refills tokens at a fixed rate and spends one per request,
// allowing bursts up to the bucket capacity. This is the default algorithm
// for the card service HTTP surface.
type TokenBucket struct {
	rate     float64 // tokens added per second
	capacity float64

	mu       sync.Mutex
	tokens   float64
	refilled time.Time
}

// NewTokenBucket refills rate tokens per second into a bucket holding at
// most capacity tokens. The bucket starts full so startup traffic is not
// penalized.
func NewTokenBucket(rate float64, capacity int) *TokenBucket {
	return &TokenBucket{
		rate:     rate,
		capacity: float64(capacity),
		tokens:   float64(capacity),
		refilled: time.Now(),
	}
}

func (b *TokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(b.refilled); elapsed > 0 {
		b.tokens += elapsed.Seconds() * b.rate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.refilled = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
