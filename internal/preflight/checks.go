package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"pixelpost/internal/config"
	"pixelpost/internal/queue"
	"pixelpost/internal/services/llm"
	"pixelpost/internal/services/pixelfed"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (%s)", cfg.Model)}
}

// CheckPixelfed verifies the instance URL and access token.
func CheckPixelfed(ctx context.Context, cfg *config.Config) Result {
	const name = "Pixelfed"

	base := strings.TrimSpace(cfg.Pixelfed.BaseURL)
	if base == "" {
		return Result{Name: name, Detail: "missing base_url"}
	}
	if strings.TrimSpace(cfg.Pixelfed.AccessToken) == "" {
		return Result{Name: name, Detail: "missing access token"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := pixelfed.NewClient(pixelfed.Config{
		BaseURL:        base,
		AccessToken:    cfg.Pixelfed.AccessToken,
		Visibility:     cfg.Pixelfed.Visibility,
		TimeoutSeconds: cfg.Pixelfed.TimeoutSeconds,
	})
	account, err := client.VerifyCredentials(checkCtx)
	if err != nil {
		var rejected *pixelfed.RemoteRejectedError
		if errors.As(err, &rejected) && (rejected.StatusCode == 401 || rejected.StatusCode == 403) {
			return Result{Name: name, Detail: "auth failed (invalid access token)"}
		}
		return Result{Name: name, Detail: summarizeError(err)}
	}
	who := account.Acct
	if who == "" {
		who = account.Username
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("authenticated as @%s", who)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCreatableDir passes when path is an accessible directory, or when it
// is missing but its nearest existing ancestor is writable.
func CheckCreatableDir(name, path string) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return CheckDirectoryAccess(name, path)
	}
	ancestor := parentDir(path)
	for {
		if _, err := os.Stat(ancestor); err == nil {
			break
		}
		next := filepath.Dir(ancestor)
		if next == ancestor {
			break
		}
		ancestor = next
	}
	if err := unix.Access(ancestor, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, ancestor, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckQueueFile verifies the queue file is readable and its head parses.
// A missing file passes: the next run is simply a no-op.
func CheckQueueFile(name, path string, delimiter rune) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (missing; nothing to publish)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	// Replace writes a sibling temp file, so the directory must be writable too.
	if err := unix.Access(parentDir(path), unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: directory not writable: %v)", path, err)}
	}

	snap, err := queue.NewStore(path, queue.WithDelimiter(delimiter)).ReadAll(context.Background())
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if snap.Empty() {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (empty)", path)}
	}
	head, err := snap.Head()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: head: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d queued, next %s)", path, snap.Len(), filepath.Base(head.MediaRef))}
}

func parentDir(path string) string {
	return filepath.Dir(filepath.Clean(path))
}

// summarizeError produces a human-readable summary for health check failures.
func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
