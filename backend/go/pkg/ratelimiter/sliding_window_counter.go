package ratelimiter

import (
	"sync"
	"time"
)

// SlidingWindowCounter approximates a sliding window by splitting it into
// numBuckets fixed sub-windows and summing their counts. It uses constant
// memory like FixedWindowCounter while softening the boundary burst problem.
type SlidingWindowCounter struct {
	limit      int
	window     time.Duration
	numBuckets int
	bucketSize time.Duration

	mu      sync.Mutex
	buckets []int
	head    int       // index of the bucket currently receiving counts
	movedAt time.Time // last time the head advanced
}

// NewSlidingWindowCounter admits limit requests per window, tracked across
// numBuckets sub-windows. Non-positive numBuckets falls back to 10.
func NewSlidingWindowCounter(limit int, window time.Duration, numBuckets int) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	return &SlidingWindowCounter{
		limit:      limit,
		window:     window,
		numBuckets: numBuckets,
		bucketSize: window / time.Duration(numBuckets),
		buckets:    make([]int, numBuckets),
		movedAt:    time.Now(),
	}
}

// advance rotates the head forward over every bucket whose sub-window has
// expired, zeroing the buckets it passes. Caller holds mu.
func (c *SlidingWindowCounter) advance() {
	now := time.Now()
	steps := int(now.Sub(c.movedAt) / c.bucketSize)
	if steps <= 0 {
		return
	}

	if steps >= c.numBuckets {
		for i := range c.buckets {
			c.buckets[i] = 0
		}
	} else {
		for i := 1; i <= steps; i++ {
			c.buckets[(c.head+i)%c.numBuckets] = 0
		}
	}
	c.head = (c.head + steps) % c.numBuckets
	c.movedAt = now
}

func (c *SlidingWindowCounter) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.advance()

	total := 0
	for _, n := range c.buckets {
		total += n
	}
	if total >= c.limit {
		return false
	}
	c.buckets[c.head]++
	return true
}
