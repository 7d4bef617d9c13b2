package esi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const defaultBaseURL = "https://esi.evetech.net/latest"

// StatusError is returned for any non-200 ESI response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ESI %d: %s", e.Code, e.Body)
}

// IsNotFound reports whether err is an ESI 404 (used for out-of-range pages).
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client is a rate-limited ESI HTTP client.
type Client struct {
	http       *http.Client
	sem        chan struct{}
	baseURL    string
	token      string
	orderCache *OrderCache
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another ESI root (tests use httptest).
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithToken sets the bearer token used for authenticated endpoints.
func WithToken(tok string) Option { return func(c *Client) { c.token = tok } }

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithConcurrency sets how many requests may be in flight at once.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.sem = make(chan struct{}, n)
		}
	}
}

// NewClient creates an ESI client. Uses 50 concurrent connections unless
// overridden (ESI allows up to 150 error-free requests/sec).
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: 30 * time.Second},
		sem:        make(chan struct{}, 50),
		baseURL:    defaultBaseURL,
		orderCache: NewOrderCache(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// HasToken reports whether authenticated endpoints can be called.
func (c *Client) HasToken() bool { return c.token != "" }

// HealthCheck pings ESI to verify connectivity.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := c.newRequest(ctx, c.baseURL+"/status/?datasource=tranquility", false)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) newRequest(ctx context.Context, url string, auth bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "eve-industry/1.0 (github.com)")
	req.Header.Set("Accept", "application/json")
	if auth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// GetJSON fetches a public URL and decodes JSON into dst.
func (c *Client) GetJSON(ctx context.Context, url string, dst any) error {
	_, err := c.get(ctx, url, false, dst)
	return err
}

// GetAuthJSON fetches an authenticated URL and decodes JSON into dst.
func (c *Client) GetAuthJSON(ctx context.Context, url string, dst any) error {
	_, err := c.get(ctx, url, true, dst)
	return err
}

// get performs one request under the semaphore and returns the X-Pages header value (1 if absent).
func (c *Client) get(ctx context.Context, url string, auth bool, dst any) (int, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { <-c.sem }()

	req, err := c.newRequest(ctx, url, auth)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	pages := 1
	if p := resp.Header.Get("X-Pages"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			pages = n
		}
	}
	return pages, json.NewDecoder(resp.Body).Decode(dst)
}
