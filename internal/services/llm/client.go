package llm

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

	"bobbin/internal/services"
)

const (
	defaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	defaultTimeout  = 120 * time.Second
)

// Config holds the OpenRouter connection settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	Temperature    float64
	TimeoutSeconds int
}

func (c Config) normalized() Config {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.Model = strings.TrimSpace(c.Model)
	c.Referer = strings.TrimSpace(c.Referer)
	c.Title = strings.TrimSpace(c.Title)
	if c.BaseURL == "" {
		c.BaseURL = defaultEndpoint
	}
	return c
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return defaultTimeout
}

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	cfg   Config
	http  *http.Client
	retry retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRetryMaxAttempts sets the total number of attempts per request.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff sets the first retry delay and the ceiling it doubles up to.
func WithRetryBackoff(base, ceiling time.Duration) Option {
	return func(c *Client) {
		c.retry.base = base
		c.retry.ceiling = ceiling
	}
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleep = sleep }
}

// NewClient builds a client for cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.normalized()
	client := &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.timeout()},
		retry: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.cfg.Model
}

// Complete sends a plain-text request and returns the trimmed reply.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req, err := c.newRequest(system, user, false)
	if err != nil {
		return "", err
	}
	return c.call(ctx, "complete", req)
}

// CompleteJSON sends a request in JSON mode at temperature zero and returns
// the raw payload. Decode it with DecodeJSON.
func (c *Client) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	req, err := c.newRequest(system, user, true)
	if err != nil {
		return "", err
	}
	return c.call(ctx, "complete json", req)
}

// HealthCheck sends a one-line JSON ping to confirm the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "Reply with JSON only.", `Reply with {"ok":true}`)
	if err != nil {
		return err
	}
	var reply struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(content, &reply); err != nil {
		return services.Wrap(services.ErrExternalTool, "llm", "health", "unreadable reply", err)
	}
	if !reply.OK {
		return services.Wrap(services.ErrExternalTool, "llm", "health", "unexpected reply "+snippet(content), nil)
	}
	return nil
}

func (c *Client) newRequest(system, user string, jsonMode bool) (chatRequest, error) {
	system, user = strings.TrimSpace(system), strings.TrimSpace(user)
	switch {
	case c.cfg.APIKey == "":
		return chatRequest{}, services.Wrap(services.ErrConfiguration, "llm", "request", "api key required", nil)
	case system == "" || user == "":
		return chatRequest{}, services.Wrap(services.ErrValidation, "llm", "request", "system and user prompts are required", nil)
	}
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
	}
	if jsonMode {
		req.Temperature = 0
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return req, nil
}

// call runs one request through the retry policy.
func (c *Client) call(ctx context.Context, op string, req chatRequest) (string, error) {
	attempts := c.retry.maxAttempts()
	var err error
	made := 0
	for made < attempts {
		made++
		var content string
		content, err = c.send(ctx, req)
		if err == nil {
			return content, nil
		}
		if made >= attempts || !retryable(ctx, err) {
			break
		}
		if waitErr := c.retry.wait(ctx, c.retry.delay(made, err)); waitErr != nil {
			return "", waitErr
		}
	}
	if made > 1 {
		return "", fmt.Errorf("llm %s: gave up after %d attempts: %w", op, made, err)
	}
	return "", fmt.Errorf("llm %s: %w", op, err)
}

// send performs a single HTTP round trip and extracts the reply text.
func (c *Client) send(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(markerForTransportError(err), "llm", "http", fmt.Sprintf("request failed (timeout %s)", c.http.Timeout), err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "llm", "http", "read response", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", newStatusError(resp, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "llm", "decode", "invalid response "+snippet(string(raw)), err)
	}
	if parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return "", services.Wrap(services.ErrExternalTool, "llm", "api", strings.TrimSpace(parsed.Error.Message), nil)
	}
	content, finish := parsed.text()
	if content == "" {
		return "", &emptyReplyError{
			finishReason: finish,
			refusal:      parsed.refusal(),
			body:         snippet(string(raw)),
			noChoices:    len(parsed.Choices) == 0,
		}
	}
	return content, nil
}

// StatusError reports a non-2xx reply from the endpoint.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func newStatusError(resp *http.Response, body []byte) *StatusError {
	after, _ := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body)), RetryAfter: after}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, snippet(e.Body))
}

// Unwrap classifies the status for services.FailureKind.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden:
		return services.ErrConfiguration
	case e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError:
		return services.ErrTransient
	default:
		return services.ErrExternalTool
	}
}

type emptyReplyError struct {
	finishReason string
	refusal      string
	body         string
	noChoices    bool
}

func (e *emptyReplyError) Error() string {
	if e.noChoices {
		return "empty reply: no choices in " + e.body
	}
	msg := fmt.Sprintf("empty reply (finish_reason=%q", e.finishReason)
	if e.refusal != "" {
		msg += fmt.Sprintf(", refusal=%q", e.refusal)
	}
	return msg + "): " + e.body
}

func (e *emptyReplyError) Unwrap() error { return services.ErrExternalTool }

func markerForTransportError(err error) error {
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return services.ErrTimeout
	}
	return services.ErrTransient
}
