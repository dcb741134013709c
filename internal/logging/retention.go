package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// minKeptRuns is the number of newest run logs that survive pruning
// regardless of age.
const minKeptRuns = 5

// PruneRunLogs removes per-run log files in dir older than retentionDays.
// The current log and the newest few runs are always kept. A retentionDays
// value of 0 disables pruning. It returns the number of files removed.
func PruneRunLogs(logger *slog.Logger, dir string, retentionDays int, current string) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(dir, RunLogPattern))
	if err != nil || len(matches) <= minKeptRuns {
		return 0
	}
	// Run log names embed a sortable UTC timestamp.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	currentAbs, _ := filepath.Abs(current)
	removed := 0
	for _, path := range matches[minKeptRuns:] {
		if abs, err := filepath.Abs(path); err == nil && abs == currentAbs {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on log_dir"),
				String(FieldImpact, "old run log remains on disk"),
			)
			continue
		}
		removed++
	}
	if removed > 0 && logger != nil {
		logger.Debug("run logs pruned",
			Int("removed", removed),
			String("log_dir", dir),
			String(FieldEventType, "logs_pruned"),
		)
	}
	return removed
}
