// Package circuitbreaker implements a consecutive-failure circuit breaker.
// It protects callers of flaky dependencies (the AnkiConnect endpoint, remote
// document URLs) by failing fast once a dependency keeps erroring, instead of
// queueing more work behind it.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State identifies where the breaker currently sits in its lifecycle.
type State int

const (
	// Closed lets every request through; failures are being counted.
	Closed State = iota
	// Open rejects every request until the cool-down timeout elapses.
	Open
	// HalfOpen lets trial requests through to probe whether the
	// dependency has recovered.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "Half-Open"
	default:
		return "Unknown"
	}
}

// ErrCircuitOpen is returned by Execute while the breaker is Open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker wraps calls to an unreliable dependency.
type CircuitBreaker interface {
	// Execute runs req unless the circuit is Open. The request's error
	// (or nil) feeds the breaker's failure and success counters.
	Execute(req func() (interface{}, error)) (interface{}, error)
	// State reports the current lifecycle state.
	State() State
}

type breaker struct {
	failureThreshold uint32 // consecutive failures that trip the circuit
	successThreshold uint32 // consecutive half-open successes that close it
	timeout          time.Duration

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	openedAt  time.Time
}

// New builds a breaker that trips after failureThreshold consecutive
// failures, stays Open for timeout, and closes again after successThreshold
// consecutive successes in the Half-Open state.
func New(failureThreshold, successThreshold uint32, timeout time.Duration) CircuitBreaker {
	return &breaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		state:            Closed,
	}
}

func (b *breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	if err := b.beforeRequest(); err != nil {
		return nil, err
	}

	res, err := req()
	if err != nil {
		b.recordFailure()
		return nil, err
	}
	b.recordSuccess()
	return res, nil
}

// beforeRequest decides whether the call may proceed, moving an expired Open
// circuit into Half-Open first.
func (b *breaker) beforeRequest() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		if time.Since(b.openedAt) <= b.timeout {
			return ErrCircuitOpen
		}
		b.state = HalfOpen
		b.successes = 0
	}
	return nil
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = Closed
			b.failures = 0
			b.successes = 0
		}
	case Closed:
		b.failures = 0
	}
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.trip()
		}
	}
}

// trip opens the circuit and stamps the cool-down clock. Caller holds mu.
func (b *breaker) trip() {
	b.state = Open
	b.openedAt = time.Now()
	b.failures = 0
	b.successes = 0
}
