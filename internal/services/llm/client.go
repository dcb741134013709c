package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 60 * time.Second
	defaultMaxTokens   = 300
	describeTemp       = 0.2
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	cfg   Config
	http  *http.Client
	retry retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. A nil client is ignored.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRetryMaxAttempts sets the total number of attempts per call.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff overrides the exponential backoff bounds.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.base = baseDelay
		c.retry.max = maxDelay
	}
}

// WithSleeper replaces the timer used between attempts.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleeper = sleeper }
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		http:  &http.Client{Timeout: timeout},
		retry: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = defaultBaseURL
	}
	return c
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

// DescribeImage asks the model to describe an image. The image travels inline
// as a base64 data URL, so no public hosting is needed. The raw reply text is
// returned; callers normalize it.
func (c *Client) DescribeImage(ctx context.Context, prompt, mimeType string, image []byte) (string, error) {
	const op = "llm describe"
	prompt = strings.TrimSpace(prompt)
	switch {
	case prompt == "":
		return "", errors.New(op + ": prompt required")
	case len(image) == 0:
		return "", errors.New(op + ": image data required")
	case !strings.HasPrefix(mimeType, "image/"):
		return "", fmt.Errorf("%s: unsupported content type %q", op, mimeType)
	case c.cfg.APIKey == "":
		return "", errors.New(op + ": api key required")
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		Temperature: describeTemp,
		MaxTokens:   defaultMaxTokens,
	}
	return c.complete(ctx, op, req)
}

// HealthCheck sends a one-word prompt to verify the key and model are usable.
// Any non-empty reply counts as healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	const op = "llm health"
	if c.cfg.APIKey == "" {
		return errors.New(op + ": api key required")
	}
	req := chatRequest{
		Model:     c.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: "Reply with the single word OK."}},
		MaxTokens: 5,
	}
	_, err := c.complete(ctx, op, req)
	return err
}

func (c *Client) complete(ctx context.Context, op string, req chatRequest) (string, error) {
	var content string
	err := c.retry.run(ctx, op, func() error {
		var err error
		content, err = c.send(ctx, req)
		return err
	})
	return content, err
}
