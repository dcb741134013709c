package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory locations.
type Paths struct {
	QueueFile  string `toml:"queue_file"`
	ArchiveDir string `toml:"archive_dir"`
	LogDir     string `toml:"log_dir"`
	StateDir   string `toml:"state_dir"`
}

// Queue contains queue file format and locking options.
type Queue struct {
	Delimiter string `toml:"delimiter"`
	Lock      bool   `toml:"lock"`
}

// Pixelfed contains the posting API endpoint and credentials.
type Pixelfed struct {
	BaseURL        string `toml:"base_url"`
	AccessToken    string `toml:"access_token"`
	Visibility     string `toml:"visibility"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Alt controls automatic alt-text generation.
type Alt struct {
	AutoAlt      bool   `toml:"auto_alt"`
	AltPrefix    string `toml:"alt_prefix"`
	MaxAltLength int    `toml:"max_alt_length"`
}

// LLM contains vision model connection settings used for alt text.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Prompt         string `toml:"prompt"`
}

// Archive controls where published media goes.
type Archive struct {
	Collision string `toml:"collision"`
}

// Ledger controls the publish journal.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Published      bool   `toml:"published"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for pixelpost.
//
// Configuration sections by subsystem:
//   - Paths: queue file, archive, log and state locations
//   - Queue: delimiter and run lock
//   - Pixelfed: posting API endpoint and token
//   - Alt: automatic alt-text generation
//   - LLM: vision model used to describe images
//   - Archive: collision policy for archived media
//   - Ledger: publish journal used to avoid duplicate posts
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Queue         Queue         `toml:"queue"`
	Pixelfed      Pixelfed      `toml:"pixelfed"`
	Alt           Alt           `toml:"alt"`
	LLM           LLM           `toml:"llm"`
	Archive       Archive       `toml:"archive"`
	Ledger        Ledger        `toml:"ledger"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// LockPath returns the run lock location inside the state directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "pixelpost.lock")
}

// LedgerPath returns the publish journal database path.
func (c *Config) LedgerPath() string {
	if p := strings.TrimSpace(c.Ledger.Path); p != "" {
		return p
	}
	return filepath.Join(c.Paths.StateDir, defaultLedgerFile)
}

// DelimiterRune returns the queue field separator.
func (c *Config) DelimiterRune() rune {
	for _, r := range c.Queue.Delimiter {
		return r
	}
	return ';'
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the LLM settings in the shape the client expects.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
