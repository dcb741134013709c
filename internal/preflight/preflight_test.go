package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pixelpost/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCreatableDir_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "archive")
	result := CheckCreatableDir("archive", path)
	if !result.Passed || !strings.Contains(result.Detail, "will be created") {
		t.Fatalf("expected creatable pass, got %+v", result)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("check must not create the directory")
	}
}

func TestCheckQueueFile(t *testing.T) {
	dir := t.TempDir()

	missing := CheckQueueFile("queue", filepath.Join(dir, "missing.csv"), ';')
	if !missing.Passed {
		t.Fatalf("missing queue should pass, got %s", missing.Detail)
	}

	good := filepath.Join(dir, "good.csv")
	if err := os.WriteFile(good, []byte("photos/img1.jpg;Hello\nimg2.jpg;World\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckQueueFile("queue", good, ';')
	if !result.Passed || !strings.Contains(result.Detail, "2 queued, next img1.jpg") {
		t.Fatalf("unexpected result %+v", result)
	}

	bad := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(bad, []byte("lonely.jpg\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckQueueFile("queue", bad, ';'); result.Passed {
		t.Fatal("malformed head should fail")
	}
}

func TestCheckPixelfed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/verify_credentials" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 7, "username": "alice", "acct": "alice"})
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Pixelfed.BaseURL = srv.URL
	cfg.Pixelfed.AccessToken = "good-token"
	result := CheckPixelfed(context.Background(), &cfg)
	if !result.Passed || !strings.Contains(result.Detail, "@alice") {
		t.Fatalf("expected pass, got %+v", result)
	}

	cfg.Pixelfed.AccessToken = "bad-token"
	result = CheckPixelfed(context.Background(), &cfg)
	if result.Passed || !strings.Contains(result.Detail, "auth failed") {
		t.Fatalf("expected auth failure, got %+v", result)
	}

	cfg.Pixelfed.BaseURL = ""
	if result := CheckPixelfed(context.Background(), &cfg); result.Passed {
		t.Fatal("expected failure for missing base_url")
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), "Vision LLM", config.LLMConfig{})
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckLLM_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "OK"}}},
		})
	}))
	defer srv.Close()

	result := CheckLLM(context.Background(), "Vision LLM", config.LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_SkipsDisabledFeatures(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.QueueFile = filepath.Join(base, "queue.csv")
	cfg.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Ledger.Enabled = false
	cfg.Alt.AutoAlt = false
	cfg.Pixelfed.BaseURL = ""

	results := RunAll(context.Background(), &cfg)
	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"Queue file", "Archive directory", "State directory"} {
		if !byName[name].Passed {
			t.Errorf("%s failed: %s", name, byName[name].Detail)
		}
	}
	if !byName["Vision LLM"].Skipped || !byName["Publish journal"].Skipped {
		t.Fatalf("disabled features should be skipped: %+v", results)
	}
	if Failed(results) != 1 || byName["Pixelfed"].Passed {
		t.Fatalf("expected only the pixelfed check to fail, got %+v", results)
	}
}
