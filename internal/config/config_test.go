package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"pixelpost/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndReadsEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PIXELFED_ACCESS_TOKEN", "token-from-env")
	t.Setenv("OPENROUTER_API_KEY", "llm-from-env")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(tempHome, ".config", "pixelpost", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if want := filepath.Join(tempHome, ".local", "share", "pixelpost", "queue.csv"); cfg.Paths.QueueFile != want {
		t.Fatalf("queue file = %q, want %q", cfg.Paths.QueueFile, want)
	}
	if want := filepath.Join(tempHome, ".local", "state", "pixelpost"); cfg.Paths.StateDir != want {
		t.Fatalf("state dir = %q, want %q", cfg.Paths.StateDir, want)
	}
	if cfg.Pixelfed.AccessToken != "token-from-env" {
		t.Fatalf("expected access token from env, got %q", cfg.Pixelfed.AccessToken)
	}
	if cfg.LLM.APIKey != "llm-from-env" {
		t.Fatalf("expected llm key from env, got %q", cfg.LLM.APIKey)
	}
	if !cfg.Alt.AutoAlt || cfg.Alt.MaxAltLength != 300 {
		t.Fatalf("unexpected alt defaults: %+v", cfg.Alt)
	}
	if cfg.DelimiterRune() != ';' {
		t.Fatalf("unexpected delimiter %q", cfg.DelimiterRune())
	}
	if cfg.LedgerPath() != filepath.Join(cfg.Paths.StateDir, "ledger.db") {
		t.Fatalf("unexpected ledger path %q", cfg.LedgerPath())
	}
	if cfg.LockPath() != filepath.Join(cfg.Paths.StateDir, "pixelpost.lock") {
		t.Fatalf("unexpected lock path %q", cfg.LockPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "pixelpost.toml")

	type payload struct {
		Paths struct {
			QueueFile string `toml:"queue_file"`
		} `toml:"paths"`
		Pixelfed struct {
			BaseURL     string `toml:"base_url"`
			AccessToken string `toml:"access_token"`
			Visibility  string `toml:"visibility"`
		} `toml:"pixelfed"`
		Alt struct {
			AutoAlt   bool   `toml:"auto_alt"`
			AltPrefix string `toml:"alt_prefix"`
		} `toml:"alt"`
		Archive struct {
			Collision string `toml:"collision"`
		} `toml:"archive"`
	}
	custom := payload{}
	custom.Paths.QueueFile = filepath.Join(tempDir, "posts.csv")
	custom.Pixelfed.BaseURL = "https://pixelfed.example/"
	custom.Pixelfed.AccessToken = "abc123"
	custom.Pixelfed.Visibility = "Unlisted"
	custom.Alt.AutoAlt = false
	custom.Alt.AltPrefix = " [AI] "
	custom.Archive.Collision = "SUFFIX"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.QueueFile != custom.Paths.QueueFile {
		t.Fatalf("queue file = %q", cfg.Paths.QueueFile)
	}
	if cfg.Pixelfed.BaseURL != "https://pixelfed.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Pixelfed.BaseURL)
	}
	if cfg.Pixelfed.Visibility != "unlisted" {
		t.Fatalf("expected lowercased visibility, got %q", cfg.Pixelfed.Visibility)
	}
	if cfg.Alt.AutoAlt {
		t.Fatal("expected auto_alt disabled")
	}
	if cfg.Alt.AltPrefix != "[AI]" {
		t.Fatalf("expected trimmed prefix, got %q", cfg.Alt.AltPrefix)
	}
	if cfg.Archive.Collision != config.CollisionSuffix {
		t.Fatalf("collision = %q", cfg.Archive.Collision)
	}
	if err := cfg.RequirePublishing(); err != nil {
		t.Fatalf("RequirePublishing: %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "pixelpost.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\nqueue_fiel = \"x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, _, err := config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "queue_fiel") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*config.Config) {}},
		{name: "multi-char delimiter", mutate: func(c *config.Config) { c.Queue.Delimiter = ";;" }, wantErr: "queue.delimiter"},
		{name: "quote delimiter", mutate: func(c *config.Config) { c.Queue.Delimiter = "\"" }, wantErr: "queue.delimiter"},
		{name: "tab delimiter", mutate: func(c *config.Config) { c.Queue.Delimiter = "\t" }},
		{name: "bad visibility", mutate: func(c *config.Config) { c.Pixelfed.Visibility = "friends" }, wantErr: "pixelfed.visibility"},
		{name: "relative base url", mutate: func(c *config.Config) { c.Pixelfed.BaseURL = "pixelfed.social" }, wantErr: "pixelfed.base_url"},
		{name: "zero alt length", mutate: func(c *config.Config) { c.Alt.MaxAltLength = 0 }, wantErr: "alt.max_alt_length"},
		{name: "prefix longer than max alt length", mutate: func(c *config.Config) { c.Alt.MaxAltLength = 3; c.Alt.AltPrefix = "[AI]" }},
		{name: "bad collision", mutate: func(c *config.Config) { c.Archive.Collision = "skip" }, wantErr: "archive.collision"},
		{name: "zero timeout", mutate: func(c *config.Config) { c.Pixelfed.TimeoutSeconds = 0 }, wantErr: "pixelfed.timeout_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRequirePublishing(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequirePublishing(); err == nil || !strings.Contains(err.Error(), "pixelfed.base_url") {
		t.Fatalf("expected base_url error, got %v", err)
	}
	cfg.Pixelfed.BaseURL = "https://pixelfed.example"
	if err := cfg.RequirePublishing(); err == nil || !strings.Contains(err.Error(), "PIXELFED_ACCESS_TOKEN") {
		t.Fatalf("expected access token error, got %v", err)
	}
	cfg.Pixelfed.AccessToken = "tok"
	if err := cfg.RequirePublishing(); err == nil || !strings.Contains(err.Error(), "llm.api_key") {
		t.Fatalf("expected llm key error, got %v", err)
	}
	cfg.Alt.AutoAlt = false
	if err := cfg.RequirePublishing(); err != nil {
		t.Fatalf("expected no error with auto_alt off, got %v", err)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Pixelfed.BaseURL != "https://pixelfed.social" {
		t.Fatalf("unexpected base url %q", cfg.Pixelfed.BaseURL)
	}
}

func TestLoadFallsBackToProjectConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	work := t.TempDir()
	t.Chdir(work)
	body := "[queue]\ndelimiter = \"|\"\n"
	if err := os.WriteFile(filepath.Join(work, "pixelpost.toml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || filepath.Base(resolved) != "pixelpost.toml" {
		t.Fatalf("expected project config, got %q exists=%v", resolved, exists)
	}
	if cfg.DelimiterRune() != '|' {
		t.Fatalf("delimiter = %q", cfg.DelimiterRune())
	}
}
