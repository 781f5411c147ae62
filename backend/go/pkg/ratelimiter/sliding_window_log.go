package ratelimiter

import (
	"container/list"
	"sync"
	"time"
)

// SlidingWindowLog keeps the timestamp of every admitted request and admits
// a new one only while fewer than limit timestamps fall inside the window.
// Exact, but memory grows with the limit.
type SlidingWindowLog struct {
	limit  int
	window time.Duration

	mu  sync.Mutex
	log *list.List // time.Time entries, oldest at the front
}

// NewSlidingWindowLog admits limit requests per sliding window.
func NewSlidingWindowLog(limit int, window time.Duration) *SlidingWindowLog {
	return &SlidingWindowLog{
		limit:  limit,
		window: window,
		log:    list.New(),
	}
}

func (l *SlidingWindowLog) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	// Entries are appended in order, so expiry stops at the first live one.
	for e := l.log.Front(); e != nil; {
		if !e.Value.(time.Time).Before(cutoff) {
			break
		}
		next := e.Next()
		l.log.Remove(e)
		e = next
	}

	if l.log.Len() >= l.limit {
		return false
	}
	l.log.PushBack(now)
	return true
}
