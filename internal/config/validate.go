package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

var validVisibilities = map[string]struct{}{
	"public":   {},
	"unlisted": {},
	"private":  {},
	"direct":   {},
}

// Validate ensures the configuration is structurally usable. Credentials are
// checked separately by RequirePublishing so queue management commands work
// without them.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validatePixelfed(); err != nil {
		return err
	}
	if err := c.validateAlt(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	return ensurePositiveMap(map[string]int{
		"pixelfed.timeout_seconds":      c.Pixelfed.TimeoutSeconds,
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

// RequirePublishing reports missing settings needed to publish a post.
func (c *Config) RequirePublishing() error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	if c.Pixelfed.BaseURL == "" {
		return fmt.Errorf("pixelfed.base_url is required. Edit %s (create with 'pixelpost config init')", defaultPath)
	}
	if c.Pixelfed.AccessToken == "" {
		return fmt.Errorf("pixelfed.access_token is required. Set %s env var or edit %s", defaultPixelfedAccessTokenEV, defaultPath)
	}
	if c.Alt.AutoAlt && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key must be set when alt.auto_alt is true (or set %s)", defaultLLMAPIKeyEV)
	}
	return nil
}

func (c *Config) validateQueue() error {
	if utf8.RuneCountInString(c.Queue.Delimiter) != 1 {
		return fmt.Errorf("queue.delimiter must be a single character, got %q", c.Queue.Delimiter)
	}
	switch r := c.DelimiterRune(); r {
	case '"', '\r', '\n', utf8.RuneError:
		return fmt.Errorf("queue.delimiter %q is not allowed", r)
	}
	return nil
}

func (c *Config) validatePixelfed() error {
	if _, ok := validVisibilities[c.Pixelfed.Visibility]; !ok {
		return fmt.Errorf("pixelfed.visibility must be one of public, unlisted, private, direct (got %q)", c.Pixelfed.Visibility)
	}
	if c.Pixelfed.BaseURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Pixelfed.BaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("pixelfed.base_url must be an absolute http(s) URL (got %q)", c.Pixelfed.BaseURL)
	}
	return nil
}

func (c *Config) validateAlt() error {
	if c.Alt.MaxAltLength <= 0 {
		return errors.New("alt.max_alt_length must be positive")
	}
	return nil
}

func (c *Config) validateArchive() error {
	switch strings.ToLower(c.Archive.Collision) {
	case CollisionOverwrite, CollisionSuffix:
		return nil
	default:
		return fmt.Errorf("archive.collision must be %q or %q (got %q)", CollisionOverwrite, CollisionSuffix, c.Archive.Collision)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
