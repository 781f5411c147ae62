// Package httpmiddleware provides net/http middleware that guards handlers
// with the rate limiting and circuit breaking primitives from pkg/ratelimiter
// and pkg/circuitbreaker. The middleware is handler-agnostic: a gin engine
// mounted on a mux passes through it the same way a plain HandlerFunc does.
package httpmiddleware

import (
	"fmt"
	"net/http"

	"github.com/mutusfa/Neurodeck/backend/go/pkg/circuitbreaker"
	"github.com/mutusfa/Neurodeck/backend/go/pkg/ratelimiter"
)

// RateLimit rejects requests with 429 Too Many Requests once the limiter
// stops granting permits. The limiter is shared across all requests passing
// through the returned middleware.
func RateLimit(limiter ratelimiter.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the status code written by the downstream handler
// so the breaker can tell server errors apart from successful responses.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// CircuitBreak routes every request through the breaker and counts responses
// with status >= 500 as failures. While the circuit is open, requests are
// answered with 503 Service Unavailable without reaching the handler.
func CircuitBreak(breaker circuitbreaker.CircuitBreaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			_, err := breaker.Execute(func() (interface{}, error) {
				next.ServeHTTP(rec, r)
				if rec.status >= http.StatusInternalServerError {
					return nil, fmt.Errorf("server error: status code %d", rec.status)
				}
				return nil, nil
			})

			if err == circuitbreaker.ErrCircuitOpen {
				http.Error(w, "Service Unavailable: Circuit Breaker is open", http.StatusServiceUnavailable)
			}
			// Any other failure already produced a response through the
			// recorder, so there is nothing left to write here.
		})
	}
}
