package caption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pixelpost/internal/logging"
	"pixelpost/internal/resource"
	"pixelpost/internal/services"
)

var (
	// ErrResourceNotFound marks an image that could not be opened.
	ErrResourceNotFound = services.Sentinel("caption image not found", services.ErrNotFound)
	// ErrEmptyCaption marks a model reply with no usable text.
	ErrEmptyCaption = errors.New("caption model returned no text")
)

// Enricher turns a media reference into alt text.
type Enricher interface {
	Describe(ctx context.Context, mediaRef string) (string, error)
}

// Model describes raw image bytes.
type Model interface {
	Describe(ctx context.Context, mimeType string, image []byte) (string, error)
}

// Options tune normalization.
type Options struct {
	Prefix    string
	MaxLength int
}

// Service is the default Enricher.
type Service struct {
	model  *resource.Lazy[Model]
	opts   Options
	logger *slog.Logger
}

// NewService builds a Service around a lazily constructed model.
func NewService(model *resource.Lazy[Model], opts Options, logger *slog.Logger) *Service {
	return &Service{
		model:  model,
		opts:   Options{Prefix: strings.TrimSpace(opts.Prefix), MaxLength: opts.MaxLength},
		logger: logging.NewComponentLogger(logger, "caption"),
	}
}

// Describe implements Enricher.
func (s *Service) Describe(ctx context.Context, mediaRef string) (string, error) {
	data, err := os.ReadFile(mediaRef)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrResourceNotFound, mediaRef, err)
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", fmt.Errorf("%w: %s is %s, not an image", ErrResourceNotFound, mediaRef, mime.String())
	}

	model, err := s.model.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load caption model: %w", err)
	}
	raw, err := model.Describe(ctx, mime.String(), data)
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", mediaRef, err)
	}

	text := Normalize(raw, s.opts)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyCaption, mediaRef)
	}
	logging.WithContext(ctx, s.logger).Debug("alt text generated",
		logging.Int("length", utf8.RuneCountInString(text)),
		logging.String("mime", mime.String()),
	)
	return text, nil
}

// Normalize applies the caption rules to raw model output. It returns "" when
// nothing but whitespace and periods remain.
func Normalize(raw string, opts Options) string {
	text := strings.TrimRight(strings.TrimSpace(raw), ".")
	if text == "" {
		return ""
	}
	text = Capitalize(text)
	if prefix := strings.TrimSpace(opts.Prefix); prefix != "" {
		text = prefix + " " + text
	}
	return Truncate(text, opts.MaxLength)
}

// Capitalize upper-cases the first rune and lower-cases the rest.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		return s
	}
	// Casers carry state, so each call gets its own.
	return cases.Upper(language.Und).String(s[:size]) + cases.Lower(language.Und).String(s[size:])
}

// Truncate cuts s to at most n runes. n <= 0 leaves s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
