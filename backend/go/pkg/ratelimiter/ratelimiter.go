// Package ratelimiter provides in-process rate limiting algorithms that all
// satisfy a single Allow() interface. The HTTP layer picks one by name from
// configuration; every implementation is safe for concurrent use.
package ratelimiter

// RateLimiter grants or denies a single request permit.
type RateLimiter interface {
	// Allow reports whether one more request may proceed right now.
	Allow() bool
}
