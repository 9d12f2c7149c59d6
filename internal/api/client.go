// Package api is the HTTP client for the invoice backend.
//
// All endpoints live under /api/v1. Invoice endpoints depend on the caller's
// role: admins use /invoices, everyone else /user-invoices (listing through
// /user-invoices/project). Requests are authenticated with the session's
// bearer token and are never retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"invoicedesk/internal/logger"
	"invoicedesk/internal/session"
)

const apiPrefix = "/api/v1"

// ErrNoToken is returned by authenticated calls made without a session.
var ErrNoToken = session.ErrNoToken

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Client talks to the invoice backend.
type Client struct {
	baseURL string
	base    http.RoundTripper
	timeout time.Duration
	session *session.Session
	http    *http.Client
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithSession authenticates requests with s.
func WithSession(s *session.Session) Option {
	return func(c *Client) { c.session = s }
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base = rt }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a client for the backend at baseURL. The /api/v1 prefix
// is added when missing.
func NewClient(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasSuffix(base, apiPrefix) {
		base += apiPrefix
	}
	c := &Client{
		baseURL: base,
		base:    http.DefaultTransport,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.SetSession(c.session)
	return c
}

// SetSession swaps the session, e.g. after login.
func (c *Client) SetSession(s *session.Session) {
	c.session = s
	c.log = logger.WithComponent("api")
	rt := c.base
	if s != nil && s.Token != "" {
		c.log = logger.WithUserID(s.UserID()).With().Str("component", "api").Logger()
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.Token, TokenType: "Bearer"}),
			Base:   c.base,
		}
	}
	c.http = &http.Client{Transport: rt, Timeout: c.timeout}
}

// Session returns the current session, or nil.
func (c *Client) Session() *session.Session {
	return c.session
}

func (c *Client) requireSession() error {
	if c.session == nil || c.session.Token == "" {
		return ErrNoToken
	}
	return nil
}

// invoicesPath is the role gated collection path.
func (c *Client) invoicesPath() string {
	if c.session != nil && c.session.IsAdmin() {
		return "/invoices"
	}
	return "/user-invoices"
}

func (c *Client) listPath() string {
	if c.session != nil && c.session.IsAdmin() {
		return "/invoices"
	}
	return "/user-invoices/project"
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, in interface{}) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and decodes a JSON response into out when out is non-nil.
func (c *Client) do(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", req.URL.Path, err)
	}

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
