// Package fetch provides the HTTP layer shared by all source fetchers:
// a retrying client plus feed, HTML, and JSON helpers.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"regiq/internal/config"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 10 * 1024 * 1024

// Doer is the interface for performing HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned for non-2xx responses that are not worth retrying
// (e.g. 404 after a site redesign). It is a permanent source error.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// DefaultRetry is used when a source configures no backoff constants.
var DefaultRetry = config.RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	MaxDelay:    10 * time.Second,
}

// Client issues GET requests with a polite User-Agent and bounded
// exponential-backoff retries for transient failures.
type Client struct {
	doer      Doer
	userAgent string
	retry     config.RetryConfig
}

// NewClient creates a Client. A nil doer falls back to a default
// http.Client; zero retry fields fall back to DefaultRetry.
func NewClient(doer Doer, userAgent string, rc config.RetryConfig) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 45 * time.Second}
	}
	if rc.MaxAttempts <= 0 {
		rc.MaxAttempts = DefaultRetry.MaxAttempts
	}
	if rc.BaseDelay <= 0 {
		rc.BaseDelay = DefaultRetry.BaseDelay
	}
	if rc.MaxDelay <= 0 {
		rc.MaxDelay = DefaultRetry.MaxDelay
	}
	return &Client{doer: doer, userAgent: userAgent, retry: rc}
}

// Get fetches url, retrying transient failures (429, 5xx, transport errors)
// with exponential backoff up to the configured attempt cap. Other non-2xx
// statuses fail immediately with a StatusError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	backoff := retry.WithCappedDuration(c.retry.MaxDelay, retry.NewExponential(c.retry.BaseDelay))
	backoff = retry.WithMaxRetries(uint64(c.retry.MaxAttempts-1), backoff)

	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		b, err := c.getOnce(ctx, url)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.doer.Do(req)
	if err != nil {
		// Transport-level failures (timeouts, resets) are transient.
		return nil, retry.RetryableError(fmt.Errorf("http get %s: %w", url, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, retry.RetryableError(&StatusError{URL: url, StatusCode: resp.StatusCode})
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("read body: %w", err))
	}
	return body, nil
}
