// Package remote implements the HTTP clients for the hosted answer, defense
// generation and file storage functions.
package remote

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

	"golang.org/x/oauth2"

	"github.com/Veraticus/casa/internal/common"
	"github.com/Veraticus/casa/internal/service"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultRequestsPerMinute = 30
	DefaultTimeout           = 30 * time.Second
)

// Endpoint paths relative to Config.BaseURL.
const (
	answerPath  = "/functions/v1/assistant-answer"
	defensePath = "/functions/v1/generate-defense"
	uploadPath  = "/storage/v1/object/"
)

// maxErrorBody bounds how much of an error response is kept for logs.
const maxErrorBody = 512

// Config configures a Client.
type Config struct {
	BaseURL           string
	APIKey            string
	Bucket            string
	RequestsPerMinute int
	Timeout           time.Duration
}

// Client talks to the hosted functions with bearer authentication.
type Client struct {
	httpClient *http.Client
	limiter    *limiter
	baseURL    string
	bucket     string
}

var (
	_ service.AnswerClient  = (*Client)(nil)
	_ service.DefenseClient = (*Client)(nil)
	_ service.FileStore     = (*Client)(nil)
)

// New creates a client. BaseURL is required; an empty APIKey sends no
// Authorization header.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: remote base URL", common.ErrMissingConfig)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "uploads"
	}

	var transport http.RoundTripper = &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.APIKey != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"}),
			Base:   transport,
		}
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		limiter:    newLimiter(cfg.RequestsPerMinute),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		bucket:     bucket,
	}, nil
}

// Close releases the client's background resources.
func (c *Client) Close() {
	c.limiter.close()
}

// postJSON sends body as JSON to path and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(payload), out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	if err := c.limiter.wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrRemoteUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	slog.Debug("Remote call finished",
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if err := statusError(resp.StatusCode, respBody); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// statusError maps non-2xx responses onto the common error taxonomy.
func statusError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	snippet := string(body)
	if len(snippet) > maxErrorBody {
		snippet = snippet[:maxErrorBody]
	}
	switch {
	case status == http.StatusTooManyRequests:
		return &common.RetryableError{Err: fmt.Errorf("%w (status %d)", common.ErrRateLimit, status), Retryable: true}
	case status >= 500:
		return fmt.Errorf("%w (status %d): %s", common.ErrRemoteUnavailable, status, snippet)
	default:
		return fmt.Errorf("%w (status %d): %s", common.ErrRemoteRejected, status, snippet)
	}
}
