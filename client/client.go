// Package client is a Go SDK for the agenda HTTP API.
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
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client wraps the /v1 API. It attaches the session's bearer token when a
// session is installed, and the link token as ?token= when one is retained.
type Client struct {
	baseURL   string
	http      *http.Client
	session   *Session
	linkToken string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLinkToken retains a share-link token; it is sent on every request.
func WithLinkToken(token string) Option {
	return func(c *Client) { c.linkToken = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Session returns the installed session, creating an anonymous one on first
// use.
func (c *Client) Session() *Session {
	if c.session == nil {
		c.session = newSession(c)
	}
	return c.session
}

// LinkToken returns the retained share-link token, if any.
func (c *Client) LinkToken() string { return c.linkToken }

// isAuthPath reports whether the request targets a credential endpoint. Those
// are excluded from the 401 refresh interceptor.
func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/v1/auth/")
}

// do performs one JSON request. On 401 outside the auth endpoints it refreshes
// the session once and retries; a second 401 is returned as-is.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	err := c.doOnce(ctx, method, path, query, body, out)
	if err == nil || isAuthPath(path) {
		return err
	}
	if !IsStatus(err, http.StatusUnauthorized) {
		return err
	}
	sess := c.Session()
	if sess.State() != StateAuthenticated && sess.State() != StateRefreshing {
		return err
	}
	if refreshErr := sess.Refresh(ctx); refreshErr != nil {
		return err
	}
	return c.doOnce(ctx, method, path, query, body, out)
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if query == nil {
		query = url.Values{}
	}
	if c.linkToken != "" {
		query.Set("token", c.linkToken)
	}
	if enc := query.Encode(); enc != "" {
		u += "?" + enc
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil {
		if token := c.session.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func errorMessage(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err == nil && body.Error != "" {
		return body.Error
	}
	return "request failed"
}
