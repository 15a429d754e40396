package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const maxErrorBodyBytes = 2048

// FetchClient issues GET requests against the public JSON endpoints with a
// bounded retry/backoff policy. Transient failures are retried with doubling
// backoff; fatal rejections and parse failures propagate immediately.
type FetchClient struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	cookies    map[string]string
}

type FetchOption func(*FetchClient)

// WithHTTPClient swaps the underlying transport, e.g. for an OAuth client
// built from a credential bundle.
func WithHTTPClient(c *http.Client) FetchOption {
	return func(fc *FetchClient) { fc.client = c }
}

func WithRetryPolicy(retries int, backoff time.Duration) FetchOption {
	return func(fc *FetchClient) {
		fc.maxRetries = retries
		fc.backoff = backoff
	}
}

func WithUserAgent(ua string) FetchOption {
	return func(fc *FetchClient) { fc.userAgent = ua }
}

// WithCookies attaches an opaque cookie bundle to every request. Contents
// are passed through untouched.
func WithCookies(cookies map[string]string) FetchOption {
	return func(fc *FetchClient) { fc.cookies = cookies }
}

func NewFetchClient(opts ...FetchOption) *FetchClient {
	fc := &FetchClient{
		client:     &http.Client{Timeout: REQUEST_TIMEOUT},
		userAgent:  USER_AGENT,
		maxRetries: MAX_RETRIES,
		backoff:    INITIAL_BACKOFF,
		maxBackoff: MAX_BACKOFF,
	}
	for _, opt := range opts {
		opt(fc)
	}
	return fc
}

// FetchJSON fetches rawURL with params and decodes the response into v.
// It attempts up to the configured retry count, sleeping backoff*2^(n-1)
// between attempts; the sleep is interruptible via ctx. The final failure
// wraps the last underlying cause.
func (fc *FetchClient) FetchJSON(ctx context.Context, rawURL string, params url.Values, v any) error {
	var lastErr error
	backoff := fc.backoff

	for attempt := 1; attempt <= fc.maxRetries; attempt++ {
		err := fc.doOnce(ctx, rawURL, params, v)
		if err == nil {
			return nil
		}

		var transient *TransientError
		if !errors.As(err, &transient) {
			return err
		}
		lastErr = err

		if attempt == fc.maxRetries {
			break
		}

		slog.Warn("[FetchClient] Retrying request",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > fc.maxBackoff {
			backoff = fc.maxBackoff
		}
	}

	return fmt.Errorf("[FetchClient] request failed after %d attempts: %w", fc.maxRetries, lastErr)
}

func (fc *FetchClient) doOnce(ctx context.Context, rawURL string, params url.Values, v any) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("[FetchClient] failed to parse URL: %w", err)
	}
	if params != nil {
		query := parsed.Query()
		for key, values := range params {
			for _, value := range values {
				query.Set(key, value)
			}
		}
		parsed.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", fc.userAgent)
	req.Header.Set("Accept", "application/json")
	for name, value := range fc.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := fc.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("[FetchClient] failed to decode response from %s: %w", rawURL, err)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &TransientError{Status: resp.StatusCode}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &FatalError{Status: resp.StatusCode, Body: string(body)}
	}
}
