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
)

// ErrEmptyCompletion is returned when the provider answers without text.
var ErrEmptyCompletion = errors.New("empty completion")

// maxResponseBody caps how much of a reply is read.
const maxResponseBody = 1 << 20

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatMessage.Content is either a string or a []contentPart.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatChoice struct {
	Message chatReply `json:"message"`
	// Some providers answer with the streaming shape even when stream=false.
	Delta        chatReply `json:"delta"`
	Text         string    `json:"text"`
	FinishReason string    `json:"finish_reason"`
}

type chatReply struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

// text returns the first non-blank content across choices plus diagnostics
// for the empty case.
func (r chatResponse) text() (content, finish, refusal string) {
	for _, ch := range r.Choices {
		if finish == "" {
			finish = strings.TrimSpace(ch.FinishReason)
		}
		if refusal == "" {
			refusal = firstNonBlank(ch.Message.Refusal, ch.Delta.Refusal)
		}
		if content = firstNonBlank(ch.Message.Content, ch.Delta.Content, ch.Text); content != "" {
			return content, finish, refusal
		}
	}
	return "", finish, refusal
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, snippet(e.Body))
}

// send performs one request and returns the reply text.
func (c *Client) send(ctx context.Context, payload chatRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request (timeout %s): %w", c.http.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body)), RetryAfter: retryAfter}
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("llm request: decode response: %w (body: %s)", err, snippet(string(body)))
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("llm request: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	content, finish, refusal := decoded.text()
	if content == "" {
		return "", fmt.Errorf("%w (choices=%d finish_reason=%q refusal=%q)", ErrEmptyCompletion, len(decoded.Choices), finish, refusal)
	}
	return content, nil
}
