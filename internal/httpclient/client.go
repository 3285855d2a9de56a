// Package httpclient is the shared HTTP transport for provider adapters and
// cover downloads: default headers, bounded retries with backoff, and typed
// rate limit errors.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lepinkainen/bookmeta/internal/errors"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxAttempts = 3
	maxBodyBytes       = 16 << 20
)

// Doer is an interface for making HTTP requests.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// StatusError is returned for non-2xx responses other than 429.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Client performs requests on behalf of one named service.
type Client struct {
	service  string
	doer     Doer
	headers  http.Header
	attempts int
	backoff  func(attempt int) time.Duration
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithDoer sets a custom HTTP client.
func WithDoer(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.doer = d
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithRetryAttempts sets the total number of attempts per request.
func WithRetryAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBackoff overrides the delay between attempts.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(c *Client) {
		if fn != nil {
			c.backoff = fn
		}
	}
}

// New creates a client for service.
func New(service string, opts ...Option) *Client {
	c := &Client{
		service:  service,
		doer:     &http.Client{Timeout: defaultTimeout},
		headers:  make(http.Header),
		attempts: defaultMaxAttempts,
		backoff:  backoffDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches endpoint and returns the response body.
func (c *Client) Get(ctx context.Context, endpoint string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil, nil)
}

// GetJSON fetches endpoint and decodes the JSON response into target.
func (c *Client) GetJSON(ctx context.Context, endpoint string, target any) error {
	body, err := c.do(ctx, http.MethodGet, endpoint, nil, http.Header{"Accept": {"application/json"}})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%s: decoding response: %w", c.service, err)
	}
	return nil
}

// PostJSON sends payload as JSON and decodes the JSON response into target.
// Extra headers apply to this request only.
func (c *Client) PostJSON(ctx context.Context, endpoint string, payload any, target any, extra http.Header) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", c.service, err)
	}
	headers := http.Header{"Content-Type": {"application/json"}, "Accept": {"application/json"}}
	for k, v := range extra {
		headers[k] = v
	}
	body, err := c.do(ctx, http.MethodPost, endpoint, data, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%s: decoding response: %w", c.service, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, extra http.Header) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		body, err := c.once(ctx, method, endpoint, payload, extra)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == c.attempts {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.backoff(attempt)):
		}
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, method, endpoint string, payload []byte, extra http.Header) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", c.service, err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}
	for k, v := range extra {
		req.Header[k] = v
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.NewRateLimitErrorWithRetry(
			fmt.Sprintf("%s: rate limited", c.service),
			parseRetryAfter(resp.Header.Get("Retry-After")),
		)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Service: c.service, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", c.service, err)
	}
	return body, nil
}

func isRetryable(err error) bool {
	var statusErr *StatusError
	if stdErrors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	var urlErr *url.Error
	if stdErrors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		// Network errors (connection resets etc.)
		if strings.Contains(urlErr.Error(), "connection") {
			return true
		}
	}
	return false
}

func backoffDelay(attempt int) time.Duration {
	// exponential backoff capped at 10 seconds
	delay := time.Duration(1<<uint(attempt-1)) * time.Second
	if delay > 10*time.Second {
		return 10 * time.Second
	}
	return delay
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
