// Package client is a Go client for the HoloPass REST API. It mirrors the
// calls the web app makes and checks QR payload expiry before any network
// round trip.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/retry"
)

// DefaultTimeout bounds each HTTP request
const DefaultTimeout = 15 * time.Second

// APIError is a non-2xx response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code,omitempty"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// IsStatus reports whether err is an APIError with the given status
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to one HoloPass server
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	retry   *retry.RetryConfig
	now     func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the session token sent as a bearer token
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithRetry sets the retry policy for reads. Nil disables retries.
func WithRetry(cfg *retry.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// New creates a client for baseURL, e.g. http://localhost:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		retry: &retry.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry != nil && c.retry.ShouldRetry == nil {
		cfg := *c.retry
		cfg.ShouldRetry = retryable
		c.retry = &cfg
	}
	return c
}

// Token returns the current session token
func (c *Client) Token() string {
	return c.token
}

// SetToken replaces the session token
func (c *Client) SetToken(token string) {
	c.token = token
}

// retryable retries transport failures and 5xx responses, never 4xx
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if c.retry == nil {
		return c.do(ctx, http.MethodGet, path, query, nil, out)
	}
	var lastErr error
	result := retry.WithExponentialBackoff(ctx, c.retry, func(ctx context.Context, attempt int) error {
		lastErr = c.do(ctx, http.MethodGet, path, query, nil, out)
		return lastErr
	})
	if result.Success {
		return nil
	}
	if lastErr == nil {
		return result.LastError
	}
	return lastErr
}

// do sends one request. Writes are never retried.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Debug("HoloPass API error")
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
