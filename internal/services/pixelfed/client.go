package pixelfed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultVisibility = "public"
	maxErrorBody      = 4 << 10
)

// HTTPDoer describes the HTTP client used by the publisher.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds endpoint and credential settings.
type Config struct {
	BaseURL        string
	AccessToken    string
	Visibility     string
	TimeoutSeconds int
}

// Submission is one post to publish.
type Submission struct {
	MediaRef       string
	Caption        string
	AltText        string
	Sensitive      bool
	ContentWarning string
	IdempotencyKey string
}

// Receipt carries identifiers of the created post.
type Receipt struct {
	MediaID  string
	StatusID string
	URL      string
}

// Account is the subset of verify_credentials used for preflight output.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
	URL      string `json:"url"`
}

// Client talks to a Pixelfed instance.
type Client struct {
	baseURL    string
	token      string
	visibility string
	http       HTTPDoer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// NewClient constructs a client from cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	visibility := strings.TrimSpace(cfg.Visibility)
	if visibility == "" {
		visibility = defaultVisibility
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:      strings.TrimSpace(cfg.AccessToken),
		visibility: visibility,
		http:       &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish uploads the media and creates a status for it.
func (c *Client) Publish(ctx context.Context, sub Submission) (Receipt, error) {
	info, err := os.Stat(sub.MediaRef)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %s: %w", ErrMediaNotFound, sub.MediaRef, err)
	}
	if !info.Mode().IsRegular() {
		return Receipt{}, fmt.Errorf("%w: %s is not a regular file", ErrMediaNotFound, sub.MediaRef)
	}

	mediaID, err := c.uploadMedia(ctx, sub.MediaRef, sub.AltText)
	if err != nil {
		return Receipt{}, err
	}
	status, err := c.createStatus(ctx, mediaID, sub)
	if err != nil {
		return Receipt{MediaID: mediaID}, err
	}
	return Receipt{MediaID: mediaID, StatusID: status.ID.String(), URL: status.URL}, nil
}

// VerifyCredentials checks the token against the instance.
func (c *Client) VerifyCredentials(ctx context.Context) (Account, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/accounts/verify_credentials", nil)
	if err != nil {
		return Account{}, err
	}
	var account struct {
		Account
		ID flexibleID `json:"id"`
	}
	if err := c.do(req, "verify credentials", &account); err != nil {
		return Account{}, err
	}
	account.Account.ID = account.ID.String()
	return account.Account, nil
}

func (c *Client) uploadMedia(ctx context.Context, path, description string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrMediaNotFound, path, err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", mimetype.Detect(data).String())
	part, err := form.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("pixelfed upload: build form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("pixelfed upload: build form: %w", err)
	}
	if description != "" {
		if err := form.WriteField("description", description); err != nil {
			return "", fmt.Errorf("pixelfed upload: build form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("pixelfed upload: build form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/media", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var media struct {
		ID flexibleID `json:"id"`
	}
	if err := c.do(req, "upload media", &media); err != nil {
		return "", err
	}
	if media.ID == "" {
		return "", errors.New("pixelfed upload media: response missing id")
	}
	return media.ID.String(), nil
}

type statusRequest struct {
	Status      string   `json:"status"`
	MediaIDs    []string `json:"media_ids"`
	Sensitive   bool     `json:"sensitive"`
	SpoilerText string   `json:"spoiler_text,omitempty"`
	Visibility  string   `json:"visibility"`
}

type statusResponse struct {
	ID  flexibleID `json:"id"`
	URL string     `json:"url"`
	URI string     `json:"uri"`
}

func (c *Client) createStatus(ctx context.Context, mediaID string, sub Submission) (statusResponse, error) {
	payload, err := json.Marshal(statusRequest{
		Status:      sub.Caption,
		MediaIDs:    []string{mediaID},
		Sensitive:   sub.Sensitive,
		SpoilerText: sub.ContentWarning,
		Visibility:  c.visibility,
	})
	if err != nil {
		return statusResponse{}, fmt.Errorf("pixelfed status: encode body: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/statuses", bytes.NewReader(payload))
	if err != nil {
		return statusResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(sub.IdempotencyKey); key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	var status statusResponse
	if err := c.do(req, "create status", &status); err != nil {
		return statusResponse{}, err
	}
	if status.ID == "" {
		return statusResponse{}, errors.New("pixelfed create status: response missing id")
	}
	if status.URL == "" {
		status.URL = status.URI
	}
	return status, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.baseURL == "" {
		return nil, errors.New("pixelfed: base url not configured")
	}
	if c.token == "" {
		return nil, errors.New("pixelfed: access token not configured")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("pixelfed: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pixelfed %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RemoteRejectedError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("pixelfed %s: decode response: %w", op, err)
	}
	return nil
}

// flexibleID accepts ids encoded as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

func (f flexibleID) String() string { return string(f) }
