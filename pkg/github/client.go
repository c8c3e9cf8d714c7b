// Package github is a thin client over the GitHub REST API. Every call is
// authenticated with the per-user token supplied at construction; nothing
// is cached or retried, errors surface verbatim for the caller to render.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"aifoundry/pkg/logx"
)

const (
	defaultAPIBase   = "https://api.github.com"
	defaultOAuthBase = "https://github.com"

	acceptHeader = "application/vnd.github+json"
)

// APIError is a non-2xx response from the GitHub API.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("github: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github: status %d", e.StatusCode)
}

// RateLimited reports whether the error looks like a rate-limit rejection.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests
}

// Forbidden reports a 403.
func (e *APIError) Forbidden() bool { return e.StatusCode == http.StatusForbidden }

// NotFound reports a 404.
func (e *APIError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// Client talks to the GitHub REST API on behalf of one user token.
type Client struct {
	token      string
	apiBase    string
	oauthBase  string
	httpClient *http.Client
	logger     *logx.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIBase overrides the REST API base URL.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = base }
}

// WithOAuthBase overrides the OAuth endpoint base URL.
func WithOAuthBase(base string) Option {
	return func(c *Client) { c.oauthBase = base }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client bound to the given user token. An empty token
// is allowed for the unauthenticated OAuth exchange.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		apiBase:    defaultAPIBase,
		oauthBase:  defaultOAuthBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logx.NewLogger("github"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do issues a request against the REST API and decodes the JSON response
// into out when out is non-nil. The "token" auth scheme is used; callers
// needing the Bearer fallback use ValidateToken.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", acceptHeader)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read github response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &msg) == nil {
			apiErr.Message = msg.Message
		}
		c.logger.Debug("%s %s -> %d: %s", method, path, resp.StatusCode, apiErr.Message)
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode github response: %w", err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}
