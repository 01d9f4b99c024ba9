// ABOUTME: HTTP client for the campus assistant API with bearer-token auth
// ABOUTME: Shared request/decode plumbing used by the auth, chat, console and dashboard calls

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Operation names used for error mapping and logging.
const (
	opMe             = "me"
	opLogin          = "login"
	opRegister       = "register"
	opForgotPassword = "forgot_password"
	opResetPassword  = "reset_password"
	opStream         = "chat_stream"
	opConversations  = "conversations"
	opDocuments      = "documents"
	opUpload         = "upload"
	opSettings       = "settings"
	opDashboard      = "dashboard"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultStreamTimeout  = 5 * time.Minute
)

// TokenSource supplies the bearer token attached to authenticated requests.
// tokenstore.Store satisfies it.
type TokenSource interface {
	Get() (string, bool)
}

// Client talks to the remote API. It is safe for concurrent use.
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	logger         *slog.Logger
	requestTimeout time.Duration
	streamTimeout  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.With("component", "api")
		}
	}
}

// WithTimeouts sets the per-request and per-stream deadlines. Zero keeps the default.
func WithTimeouts(request, stream time.Duration) Option {
	return func(c *Client) {
		if request > 0 {
			c.requestTimeout = request
		}
		if stream > 0 {
			c.streamTimeout = stream
		}
	}
}

// NewClient creates a client for the API rooted at baseURL. tokens may be
// nil for unauthenticated use.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           http.DefaultClient,
		tokens:         tokens,
		logger:         slog.Default().With("component", "api"),
		requestTimeout: defaultRequestTimeout,
		streamTimeout:  defaultStreamTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// newRequest builds a request with the JSON body (if any) and bearer token.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)
	return req, nil
}

// authorize adds the bearer token when one is stored.
func (c *Client) authorize(req *http.Request) {
	if c.tokens == nil {
		return
	}
	if token, ok := c.tokens.Get(); ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// do sends a JSON request and decodes a JSON response into out (nil to discard).
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.send(req, op, out)
}

// send executes req and decodes the response.
func (c *Client) send(req *http.Request, op string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api call",
		"op", op,
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, readDetail(resp.Body))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: parsing response: %w", op, err)
	}
	return nil
}

// readDetail extracts the "detail" (or legacy "error") field from an error body.
func readDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64*1024))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err != nil {
		return strings.TrimSpace(string(data))
	}
	if errResp.Error != "" {
		return errResp.Error
	}

	// detail is usually a string but validation failures send a list
	var detail string
	if err := json.Unmarshal(errResp.Detail, &detail); err == nil {
		return detail
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(errResp.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			msgs = append(msgs, it.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
