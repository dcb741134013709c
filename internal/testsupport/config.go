package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"pixelpost/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Remote services point at unroutable placeholders until overridden.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.QueueFile = filepath.Join(base, "queue.csv")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Pixelfed.BaseURL = "http://127.0.0.1:1"
	cfgVal.Pixelfed.AccessToken = "test-token"
	cfgVal.LLM.APIKey = "test-key"
	cfgVal.LLM.BaseURL = "http://127.0.0.1:1"
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPixelfed points the config at a test instance.
func WithPixelfed(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pixelfed.BaseURL = baseURL
	}
}

// WithLLM points the vision model at a test endpoint.
func WithLLM(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = baseURL
	}
}

// WithAutoAlt toggles vision enrichment.
func WithAutoAlt(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Alt.AutoAlt = enabled
	}
}

// WithQueue writes content to the configured queue file.
func WithQueue(content string) ConfigOption {
	return func(b *configBuilder) {
		if err := os.WriteFile(b.cfg.Paths.QueueFile, []byte(content), 0o644); err != nil {
			b.t.Fatalf("write queue: %v", err)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.QueueFile)
}
