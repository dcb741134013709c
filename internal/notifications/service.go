package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"pixelpost/internal/config"
)

const (
	userAgent      = "pixelpost/0.1"
	defaultTimeout = 10 * time.Second
	maxReplyBody   = 2 << 10
)

// Service defines the notification surface exposed to the pipeline and CLI.
type Service interface {
	NotifyPublished(ctx context.Context, mediaRef, statusURL string, remaining int) error
	NotifyError(ctx context.Context, err error, label string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	n := cfg.Notifications
	topic := strings.TrimSpace(n.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(n.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ntfy{
		topic:     topic,
		client:    &http.Client{Timeout: timeout},
		published: n.Published,
		errors:    n.Errors,
	}
}

// event is one ntfy message; everything but the body travels as headers.
type event struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
	Click    string
}

func (e event) header() http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	set := func(key, value string) {
		if value != "" {
			h.Set(key, value)
		}
	}
	set("Title", e.Title)
	set("Tags", strings.Join(e.Tags, ","))
	set("Priority", e.Priority)
	set("Click", e.Click)
	return h
}

type ntfy struct {
	topic     string
	client    *http.Client
	published bool
	errors    bool
}

func (n *ntfy) NotifyPublished(ctx context.Context, mediaRef, statusURL string, remaining int) error {
	if !n.published {
		return nil
	}
	ev := event{
		Title: "pixelpost - Published",
		Body:  "Posted " + filepath.Base(strings.TrimSpace(mediaRef)) + "\n" + queueLine(remaining),
		Tags:  []string{"pixelpost", "published"},
		Click: strings.TrimSpace(statusURL),
	}
	if remaining == 0 {
		ev.Tags = append(ev.Tags, "queue_empty")
	}
	return n.post(ctx, ev)
}

func queueLine(remaining int) string {
	switch remaining {
	case 0:
		return "Queue is now empty"
	case 1:
		return "1 post left in queue"
	default:
		return fmt.Sprintf("%d posts left in queue", remaining)
	}
}

func (n *ntfy) NotifyError(ctx context.Context, err error, label string) error {
	if !n.errors {
		return nil
	}
	body := "Error"
	if label = strings.TrimSpace(label); label != "" {
		body += " during " + label
	}
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	return n.post(ctx, event{
		Title:    "pixelpost - Error",
		Body:     body + ": " + detail,
		Tags:     []string{"pixelpost", "error", "warning"},
		Priority: "high",
	})
}

func (n *ntfy) TestNotification(ctx context.Context) error {
	return n.post(ctx, event{
		Title:    "pixelpost - Test",
		Body:     "Notification system test",
		Tags:     []string{"pixelpost", "test"},
		Priority: "low",
	})
}

func (n *ntfy) post(ctx context.Context, ev event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.topic, strings.NewReader(ev.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header = ev.header()

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, maxReplyBody))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(reply)))
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyPublished(context.Context, string, string, int) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                     { return nil }
