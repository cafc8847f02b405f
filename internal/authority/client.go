// Package authority is the HTTP transport to the remote admission authority.
// It fetches the authority's key fingerprint and submits intents; judging the
// answers is left to the gate.
package authority

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
)

const (
	// DefaultTimeout bounds each call to the authority.
	DefaultTimeout = 25 * time.Second

	maxBodyBytes  = 16 << 20
	maxErrorBytes = 512
)

var (
	// ErrBadResponse marks a response that arrived but could not be decoded.
	ErrBadResponse = errors.New("bad authority response")
	// ErrNoFingerprint means /pubkey answered without a usable public_key_sha256.
	ErrNoFingerprint = errors.New("public_key_sha256 missing or empty")
)

// StatusError is returned when the authority answers with a non-2xx status.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Code, e.Body)
}

// Option configures a Client at creation time.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client talks to one authority base URL. No call is ever retried.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// New creates a Client. Trailing slashes on baseURL are dropped.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// BaseURL returns the normalized authority URL.
func (c *Client) BaseURL() string { return c.baseURL }

type pubkeyResponse struct {
	PublicKeySHA256 *string `json:"public_key_sha256"`
}

// PublicKeyFingerprint fetches GET /pubkey and returns public_key_sha256 as sent.
func (c *Client) PublicKeyFingerprint(ctx context.Context) (string, error) {
	body, err := c.do(ctx, "pubkey", http.MethodGet, "/pubkey", nil)
	if err != nil {
		return "", err
	}

	var resp pubkeyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("pubkey: %w: %v", ErrBadResponse, err)
	}
	if resp.PublicKeySHA256 == nil || strings.TrimSpace(*resp.PublicKeySHA256) == "" {
		return "", fmt.Errorf("pubkey: %w", ErrNoFingerprint)
	}
	return *resp.PublicKeySHA256, nil
}

// Admit posts the encoded admit request to POST /admit and returns the raw
// response body for the caller to log and judge.
func (c *Client) Admit(ctx context.Context, body []byte) ([]byte, error) {
	return c.do(ctx, "admit", http.MethodPost, "/admit", body)
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Body: snippet(data)}
	}
	return data, nil
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBytes {
		s = strings.ToValidUTF8(s[:maxErrorBytes], "") + "..."
	}
	return s
}
