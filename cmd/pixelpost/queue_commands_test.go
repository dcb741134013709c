package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pixelpost/internal/queue"
	"pixelpost/internal/testsupport"
)

func TestQueueListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
	if _, err := os.Stat(env.cfg.Paths.QueueFile); !os.IsNotExist(err) {
		t.Fatal("listing must not create the queue file")
	}
}

func TestQueueAddListPeek(t *testing.T) {
	env := setupCLITestEnv(t)
	img := testsupport.WriteImage(t, filepath.Join(env.baseDir, "photos", "sunset.png"))

	out, _, err := runCLI(t, []string{"queue", "add", img, "Evening; over the bay", "--sensitive", "--cw", "bright"}, env.configPath)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	requireContains(t, out, "Queued sunset.png at position 1")

	out, _, err = runCLI(t, []string{"queue", "add", img, "Again", "--alt", "An orange sky"}, env.configPath)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	requireContains(t, out, "position 2")

	content := testsupport.ReadFile(t, env.cfg.Paths.QueueFile)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 queue lines, got %q", content)
	}
	if lines[0] != img+";\"Evening; over the bay\";;1;bright" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if lines[1] != img+";Again;An orange sky" {
		t.Fatalf("unexpected second line %q", lines[1])
	}

	out, _, err = runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "sunset.png")
	requireContains(t, out, "An orange sky")

	out, _, err = runCLI(t, []string{"queue", "peek"}, env.configPath)
	if err != nil {
		t.Fatalf("queue peek: %v", err)
	}
	requireContains(t, out, "Caption:   Evening; over the bay")
	requireContains(t, out, "Sensitive: yes")
	requireContains(t, out, "Queued:    2")
}

func TestQueueAddRejectsMissingMedia(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(env.baseDir, "nope.jpg")
	if _, _, err := runCLI(t, []string{"queue", "add", missing, "Caption"}, env.configPath); err == nil {
		t.Fatal("expected error for missing media")
	}
	if _, _, err := runCLI(t, []string{"queue", "add", "--no-verify", missing, "Caption"}, env.configPath); err != nil {
		t.Fatalf("--no-verify should skip the check: %v", err)
	}
}

func TestBuildQueueRowsMarksMalformed(t *testing.T) {
	rows := buildQueueRows([]queue.Record{{"lonely.jpg"}, {"/a/b/ok.jpg", "Caption"}})
	if rows[0][2] != "(malformed)" {
		t.Fatalf("expected malformed marker, got %v", rows[0])
	}
	if rows[1][1] != "ok.jpg" || rows[1][3] != "-" || rows[1][4] != "no" {
		t.Fatalf("unexpected row %v", rows[1])
	}
}
