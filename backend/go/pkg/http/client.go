package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mutusfa/Neurodeck/backend/go/internal/config"
	"github.com/mutusfa/Neurodeck/backend/go/pkg/circuitbreaker"
)

// defaultFetchTimeout bounds a single outbound request end to end. Callers
// that need tighter bounds attach a context deadline on the request.
const defaultFetchTimeout = 30 * time.Second

// Client is an outbound HTTP client that wraps the standard http.Client
// with optional circuit breaking. The card service uses it to fetch URL
// documents, so a flapping remote site stops costing us a full timeout
// per request once the breaker opens.
type Client struct {
	httpClient *http.Client
	breaker    circuitbreaker.CircuitBreaker
}

// NewClient creates a Client. With the breaker disabled the client is a
// plain http.Client with the default timeout.
func NewClient(cfg config.CircuitBreakerConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{httpClient: &http.Client{Timeout: defaultFetchTimeout}}, nil
	}

	breaker, err := createCircuitBreaker(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		breaker:    breaker,
	}, nil
}

// Do executes an HTTP request with circuit breaker protection.
// Responses with status >= 500 count as failures toward opening the circuit.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	var resp *http.Response

	_, breakerErr := c.breaker.Execute(func() (interface{}, error) {
		var err error
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("server error: received status code %d", resp.StatusCode)
		}
		return resp, nil
	})
	if breakerErr != nil {
		// Either circuitbreaker.ErrCircuitOpen or the underlying call error.
		return nil, breakerErr
	}

	return resp, nil
}
