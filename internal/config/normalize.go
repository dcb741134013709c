package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizePixelfed()
	c.normalizeAlt()
	c.normalizeLLM()
	c.Archive.Collision = strings.ToLower(strings.TrimSpace(c.Archive.Collision))
	if c.Archive.Collision == "" {
		c.Archive.Collision = defaultArchiveCollision
	}
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.QueueFile) == "" {
		c.Paths.QueueFile = defaultQueueFile
	}
	if c.Paths.QueueFile, err = expandPath(strings.TrimSpace(c.Paths.QueueFile)); err != nil {
		return fmt.Errorf("paths.queue_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		c.Paths.ArchiveDir = defaultArchiveDir
	}
	if c.Paths.ArchiveDir, err = expandPath(strings.TrimSpace(c.Paths.ArchiveDir)); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeQueue() {
	// A delimiter of " " or "\t" is meaningful, so only empty falls back.
	if c.Queue.Delimiter == "" {
		c.Queue.Delimiter = defaultDelimiter
	}
}

func (c *Config) normalizePixelfed() {
	c.Pixelfed.BaseURL = strings.TrimRight(strings.TrimSpace(c.Pixelfed.BaseURL), "/")
	c.Pixelfed.AccessToken = strings.TrimSpace(c.Pixelfed.AccessToken)
	if c.Pixelfed.AccessToken == "" {
		if value, ok := os.LookupEnv(defaultPixelfedAccessTokenEV); ok {
			c.Pixelfed.AccessToken = strings.TrimSpace(value)
		}
	}
	c.Pixelfed.Visibility = strings.ToLower(strings.TrimSpace(c.Pixelfed.Visibility))
	if c.Pixelfed.Visibility == "" {
		c.Pixelfed.Visibility = defaultVisibility
	}
	if c.Pixelfed.TimeoutSeconds <= 0 {
		c.Pixelfed.TimeoutSeconds = defaultPixelfedTimeout
	}
}

func (c *Config) normalizeAlt() {
	c.Alt.AltPrefix = strings.TrimSpace(c.Alt.AltPrefix)
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.Prompt = strings.TrimSpace(c.LLM.Prompt)
	if c.LLM.Prompt == "" {
		c.LLM.Prompt = defaultLLMPrompt
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv(defaultLLMAPIKeyEV); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLedger() error {
	c.Ledger.Path = strings.TrimSpace(c.Ledger.Path)
	if c.Ledger.Path == "" {
		return nil
	}
	var err error
	if c.Ledger.Path, err = expandPath(c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
