package remote

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Client during construction in NewClient.
type Option func(*Client) error

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("http client must not be nil")
		}
		c.http = hc
		return nil
	}
}

// WithHTTPTimeout bounds a single backend request. The value must be > 0.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.http.Timeout = d
		return nil
	}
}

// WithRetries sets how many extra attempts a retryable failure gets before
// the client falls back to the local directory.
func WithRetries(n int, initialInterval time.Duration) Option {
	return func(c *Client) error {
		if n < 0 {
			return fmt.Errorf("retries must be >= 0")
		}
		c.retries = n
		if initialInterval > 0 {
			c.retryInterval = initialInterval
		}
		return nil
	}
}

// WithBearerToken sends token in the Authorization header.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) error {
		c.log = logger
		return nil
	}
}

// WithDebugLogging dumps every request and response when enabled.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		c.debug = c.debug || enabled
		return nil
	}
}
