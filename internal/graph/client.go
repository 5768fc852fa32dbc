// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graph implements the Microsoft Graph REST client used by the
// exporter: bearer-token requests, bounded retry with backoff, paginated
// listing with stop-condition support, and binary content download.
package graph

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the Graph API.
const (
	// DefaultBaseURL is the base URL for Microsoft Graph v1.0.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxAttempts is the total attempt budget per HTTP call.
	// Rate-limit, 5xx, and transport failures all draw from the same budget.
	DefaultMaxAttempts = 4

	// retryInitialDelay is the base delay for exponential backoff.
	retryInitialDelay = 2 * time.Second

	// retryMaxDelay caps the exponential backoff.
	retryMaxDelay = 60 * time.Second

	// MaxResponseSize is the maximum allowed JSON response body size.
	MaxResponseSize = 50 * 1024 * 1024 // 50MB
)

// sharedHTTPClient is the pooled HTTP client shared by all Graph requests,
// including concurrent export workers. http.Client is safe for concurrent
// use; pooling avoids per-request TCP handshakes during attachment sweeps.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	Timeout: DefaultTimeout,
}

// Record is a raw JSON object as returned by the API, before normalization.
type Record = map[string]any

// ErrNotConfigured indicates the bearer token is not set.
var ErrNotConfigured = errors.New("graph: access token not configured")

// =============================================================================
// API ERRORS
// =============================================================================

// APIError represents a terminal error response from the Graph API. Code and
// Message come from the JSON error envelope when present; otherwise Message
// holds the raw body text.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("Graph API error %s (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("Graph API error %d: %s", e.Status, e.Message)
}

// errorEnvelope is the Graph error response shape.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newAPIError builds an APIError from a non-2xx response, preferring the
// structured envelope over raw body text.
func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &APIError{
			Code:    envelope.Error.Code,
			Message: envelope.Error.Message,
			Status:  resp.StatusCode,
		}
	}

	return &APIError{
		Status:  resp.StatusCode,
		Message: strings.TrimSpace(string(body)),
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a Microsoft Graph API client. It is safe for concurrent use:
// export workers share one Client, and the underlying HTTP client pools
// connections across them.
type Client struct {
	token       string
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	limiter     *rate.Limiter

	// sleep is replaceable in tests so backoff behavior can be asserted
	// without real delays.
	sleep func(time.Duration)
}

// NewClient creates a Graph client around an opaque bearer token. Token
// acquisition (device flow, refresh) is the caller's concern.
func NewClient(token string) *Client {
	return &Client{
		token:       strings.TrimSpace(token),
		baseURL:     DefaultBaseURL,
		httpClient:  sharedHTTPClient,
		maxAttempts: DefaultMaxAttempts,
		// Graph throttles per-app per-user; a modest client-side ceiling
		// keeps multi-worker exports from tripping 429s in the first place.
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		sleep:   time.Sleep,
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimSuffix(u, "/")
	return c
}

// WithHTTPClient sets a custom HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithMaxAttempts sets the per-call attempt budget.
func (c *Client) WithMaxAttempts(n int) *Client {
	if n > 0 {
		c.maxAttempts = n
	}
	return c
}

// WithLimiter sets a custom client-side rate limiter.
func (c *Client) WithLimiter(l *rate.Limiter) *Client {
	c.limiter = l
	return c
}

// IsConfigured returns true if the client has a token.
func (c *Client) IsConfigured() bool {
	return c.token != ""
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// setHeaders sets the required headers for Graph API requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "teams-export/0.3.0")
}

// =============================================================================
// RETRY / BACKOFF
// =============================================================================

// backoffDelay returns the exponential backoff delay for the given attempt
// (0-based): 2s, 4s, 8s, capped at retryMaxDelay.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := retryInitialDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// retryAfter extracts an integer-seconds Retry-After value, or false when
// the header is absent or not a plain second count.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// get performs a GET against rawURL with retry and backoff. 429 honors a
// parseable Retry-After; 429 without one, 5xx, and transport failures back
// off exponentially on a shared attempt counter. Any other status is
// returned as-is for the caller to classify. On budget exhaustion the last
// failure is surfaced: transport errors wrapped with the attempt count,
// HTTP failures as *APIError.
func (c *Client) get(ctx context.Context, rawURL string, query url.Values) (*http.Response, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	if len(query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Context cancellation is not retryable.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = err
			if attempt < c.maxAttempts-1 {
				c.sleep(c.backoffDelay(attempt))
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			apiErr := newAPIError(resp)
			resp.Body.Close()
			lastErr = apiErr
			if attempt < c.maxAttempts-1 {
				delay, ok := retryAfter(resp)
				if !ok {
					delay = c.backoffDelay(attempt)
				}
				log.Printf("graph: rate limited, retrying in %v (attempt %d/%d)", delay, attempt+1, c.maxAttempts)
				c.sleep(delay)
			}
			continue

		case resp.StatusCode >= 500:
			apiErr := newAPIError(resp)
			resp.Body.Close()
			lastErr = apiErr
			if attempt < c.maxAttempts-1 {
				c.sleep(c.backoffDelay(attempt))
			}
			continue

		default:
			// Success and non-retryable 4xx are both handed back.
			return resp, nil
		}
	}

	var apiErr *APIError
	if errors.As(lastErr, &apiErr) {
		return nil, apiErr
	}
	return nil, fmt.Errorf("graph: request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

// =============================================================================
// JSON AND BINARY FETCH
// =============================================================================

// pageEnvelope is the paginated list response shape: a value array plus an
// optional absolute continuation link.
type pageEnvelope struct {
	Value    []Record `json:"value"`
	NextLink string   `json:"@odata.nextLink"`
}

// getPage fetches and decodes one page of a paginated listing.
func (c *Client) getPage(ctx context.Context, rawURL string, query url.Values) (*pageEnvelope, error) {
	resp, err := c.get(ctx, rawURL, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, newAPIError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var page pageEnvelope
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return &page, nil
}

// Me fetches the signed-in user's profile record. Used to key the local
// chat-list cache per account.
func (c *Client) Me(ctx context.Context) (Record, error) {
	resp, err := c.get(ctx, c.baseURL+"/me", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, newAPIError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return rec, nil
}

// Download fetches binary content (attachments, hosted images) from an
// absolute URL. The same retry policy applies. The caller must close the
// returned body. A non-2xx status after retries is returned as *APIError.
func (c *Client) Download(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	resp, err := c.get(ctx, rawURL, nil)
	if err != nil {
		return nil, "", err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, "", newAPIError(resp)
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}
