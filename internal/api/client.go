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

	"github.com/vaultsandbox/e3kit-go/internal/apierrors"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is the default number of retries. Retries are opt-in.
	DefaultMaxRetries = 0
	// DefaultRetryDelay is the base delay between retries.
	DefaultRetryDelay = time.Second

	// RequestIDHeader carries the server-assigned request ID.
	RequestIDHeader = "X-Request-ID"

	userAgent = "e3kit-go"
)

// DefaultRetryOn lists the HTTP status codes retried by default.
var DefaultRetryOn = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// TokenFunc returns a bearer token for the next request. It is called once
// per attempt so short-lived tokens can be refreshed between retries.
type TokenFunc func(ctx context.Context) (string, error)

// StaticToken returns a TokenFunc that always yields token.
func StaticToken(token string) TokenFunc {
	return func(context.Context) (string, error) { return token, nil }
}

// Client is the HTTP API client for the card directory and the cloud key store.
type Client struct {
	baseURL    string
	token      TokenFunc
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	retryOn    map[int]bool
}

// Config holds client configuration.
type Config struct {
	BaseURL    string
	Token      TokenFunc
	HTTPClient *http.Client
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	RetryOn    []int
}

// NewClient creates a new API client from a Config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == nil {
		return nil, errors.New("token source is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: cfg.HTTPClient,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}

	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.retryDelay == 0 {
		c.retryDelay = DefaultRetryDelay
	}

	retryOn := cfg.RetryOn
	if len(retryOn) == 0 {
		retryOn = DefaultRetryOn
	}
	c.retryOn = make(map[int]bool, len(retryOn))
	for _, code := range retryOn {
		c.retryOn[code] = true
	}

	return c, nil
}

// Option configures a client created with New.
type Option func(*Config)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithRetries sets the number of retries for idempotent requests.
func WithRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithRetryOn sets the status codes that trigger a retry.
func WithRetryOn(codes []int) Option {
	return func(c *Config) {
		c.RetryOn = codes
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// New creates a new API client with functional options.
func New(token TokenFunc, opts ...Option) (*Client, error) {
	cfg := Config{
		Token:      token,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewClient(cfg)
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Do performs an HTTP request. GET and HEAD requests are retried according
// to the client's retry settings; other methods are sent exactly once.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	idempotent := method == http.MethodGet || method == http.MethodHead
	return c.do(ctx, method, path, body, result, idempotent)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, idempotent bool) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	retries := 0
	if idempotent {
		retries = c.maxRetries
	}
	wait := newBackoff(c.retryDelay)

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := wait.sleep(ctx, attempt-1); err != nil {
				return err
			}
		}

		resp, err := c.send(ctx, method, path, payload, attempt)
		if err != nil {
			var netErr *apierrors.NetworkError
			if !errors.As(err, &netErr) || ctx.Err() != nil {
				return err
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 400 {
			lastErr = parseErrorResponse(resp)
			resp.Body.Close()
			if c.shouldRetry(idempotent, attempt, resp.StatusCode) {
				continue
			}
			return lastErr
		}

		err = decodeResponse(resp, result)
		resp.Body.Close()
		return err
	}

	return lastErr
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, attempt int) (*http.Response, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, &apierrors.TokenError{Err: err}
	}
	if token == "" {
		return nil, &apierrors.TokenError{Err: apierrors.ErrMissingToken}
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &apierrors.NetworkError{Err: err, URL: url, Attempt: attempt + 1}
	}
	return resp, nil
}

func decodeResponse(resp *http.Response, result any) error {
	if result == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &apierrors.APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get(RequestIDHeader),
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		apiErr.Message = errResp.Error
		if errResp.RequestID != "" {
			apiErr.RequestID = errResp.RequestID
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}
