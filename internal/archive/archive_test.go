package archive_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pixelpost/internal/archive"
	"pixelpost/internal/logging"
)

func seed(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestArchiveCreatesDirectoryAndMoves(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "img1.jpg")
	seed(t, src, "pixels")
	dir := filepath.Join(base, "archive")

	out := archive.New(dir, "", logging.NewNop()).Archive(context.Background(), src)
	if !out.OK() {
		t.Fatalf("Archive failed: %v", out.Err)
	}
	if out.Path != filepath.Join(dir, "img1.jpg") {
		t.Fatalf("unexpected path %q", out.Path)
	}
	if readFile(t, out.Path) != "pixels" {
		t.Fatal("content mismatch")
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source should be gone, err=%v", err)
	}
}

func TestArchiveOverwriteReplacesExisting(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "archive")
	seed(t, filepath.Join(dir, "img1.jpg"), "old")
	src := filepath.Join(base, "img1.jpg")
	seed(t, src, "new")

	out := archive.New(dir, archive.CollisionOverwrite, nil).Archive(context.Background(), src)
	if !out.OK() || readFile(t, out.Path) != "new" {
		t.Fatalf("expected overwrite, got %+v", out)
	}
}

func TestArchiveSuffixKeepsBoth(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "archive")
	seed(t, filepath.Join(dir, "img1.jpg"), "old")
	seed(t, filepath.Join(dir, "img1-1.jpg"), "older")
	src := filepath.Join(base, "img1.jpg")
	seed(t, src, "new")

	out := archive.New(dir, archive.CollisionSuffix, nil).Archive(context.Background(), src)
	if !out.OK() {
		t.Fatalf("Archive: %v", out.Err)
	}
	if out.Path != filepath.Join(dir, "img1-2.jpg") || readFile(t, out.Path) != "new" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if readFile(t, filepath.Join(dir, "img1.jpg")) != "old" {
		t.Fatal("existing archive file must be preserved")
	}
}

func TestArchiveFailureIsReported(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "img1.jpg")
	seed(t, src, "x")

	a := archive.New(filepath.Join(base, "archive"), "", nil)
	boom := errors.New("read-only filesystem")
	a.MoveFunc = func(string, string) error { return boom }

	out := a.Archive(context.Background(), src)
	if out.OK() || !errors.Is(out.Err, boom) || out.Path != "" {
		t.Fatalf("expected reported failure, got %+v", out)
	}
	if readFile(t, src) != "x" {
		t.Fatal("source must stay in place")
	}
}

func TestArchiveMissingSource(t *testing.T) {
	base := t.TempDir()
	out := archive.New(filepath.Join(base, "archive"), "", nil).Archive(context.Background(), filepath.Join(base, "nope.jpg"))
	if out.OK() {
		t.Fatal("expected failure for missing source")
	}
}
