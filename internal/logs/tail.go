package logs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"pixelpost/internal/logging"
)

// ErrNoLogs is returned when log_dir holds no run log yet.
var ErrNoLogs = errors.New("no run logs found")

// Latest returns the newest run log in dir. The pixelpost.log pointer wins
// when it resolves; otherwise run logs are ordered by their timestamped names.
func Latest(dir string) (string, error) {
	pointer := filepath.Join(dir, logging.LogFileName)
	if target, err := filepath.EvalSymlinks(pointer); err == nil {
		return target, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, logging.RunLogPattern))
	if err != nil {
		return "", fmt.Errorf("list run logs: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrNoLogs
	}
	slices.Sort(matches)
	return matches[len(matches)-1], nil
}

// Last returns up to n complete trailing lines of path and the offset just
// past the last of them. n <= 0 returns no lines and the current end offset.
func Last(path string, n int) ([]string, int64, error) {
	lines, offset, err := readFrom(path, 0)
	if err != nil {
		return nil, 0, err
	}
	if n <= 0 {
		return nil, offset, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, offset, nil
}

// Follow calls emit for every complete line appended after offset, polling
// at interval until ctx is done. It returns ctx.Err().
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, emit func(string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		lines, next, err := readFrom(path, offset)
		if err != nil {
			return err
		}
		// A rotated or truncated file restarts from the beginning.
		if next < offset {
			offset = 0
			continue
		}
		for _, line := range lines {
			emit(line)
		}
		offset = next

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// readFrom returns the complete lines after offset and the offset following
// the last newline consumed. If the file shrank below offset it returns the
// new size so callers can detect truncation.
func readFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if info.Size() < offset {
		return nil, info.Size(), nil
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, offset, nil
	}
	complete := data[:end]
	var lines []string
	for line := range bytes.SplitSeq(complete, []byte{'\n'}) {
		lines = append(lines, string(bytes.TrimSuffix(line, []byte{'\r'})))
	}
	return lines, offset + int64(end) + 1, nil
}
