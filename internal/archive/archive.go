// Package archive moves published media out of the working set.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pixelpost/internal/fileutil"
	"pixelpost/internal/logging"
)

// Collision policies for an existing file of the same name.
const (
	CollisionOverwrite = "overwrite"
	CollisionSuffix    = "suffix"
)

// maxSuffix bounds the search for a free name-N.ext slot.
const maxSuffix = 10000

// Outcome reports where the artifact went, or why it did not.
type Outcome struct {
	Path string
	Err  error
}

// OK reports whether the artifact was archived.
func (o Outcome) OK() bool { return o.Err == nil }

// Archiver moves files into Dir.
type Archiver struct {
	Dir       string
	Collision string
	MoveFunc  func(src, dst string) error
	logger    *slog.Logger
}

// New returns an Archiver for dir using the given collision policy.
func New(dir, collision string, logger *slog.Logger) *Archiver {
	return &Archiver{
		Dir:       dir,
		Collision: strings.ToLower(strings.TrimSpace(collision)),
		MoveFunc:  fileutil.MoveFile,
		logger:    logging.NewComponentLogger(logger, "archive"),
	}
}

// Archive moves mediaRef into the archive directory under its base name.
// Failures are logged and reported in the Outcome.
func (a *Archiver) Archive(ctx context.Context, mediaRef string) Outcome {
	logger := logging.WithContext(ctx, a.logger)
	target, err := a.archive(mediaRef)
	if err != nil {
		logging.WarnWithContext(logger, "archive failed; media left in place", "archive_failed",
			logging.String("source", mediaRef),
			logging.String("archive_dir", a.Dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check archive_dir permissions and free space, then move the file manually"),
			logging.String(logging.FieldImpact, "post is published and dequeued; only the local copy was not archived"),
		)
		return Outcome{Err: err}
	}
	logger.Info("media archived",
		logging.String("source", mediaRef),
		logging.String("destination", target),
		logging.String(logging.FieldEventType, "media_archived"),
	)
	return Outcome{Path: target}
}

func (a *Archiver) archive(mediaRef string) (string, error) {
	if strings.TrimSpace(a.Dir) == "" {
		return "", errors.New("archive directory not configured")
	}
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}
	target, err := a.targetPath(mediaRef)
	if err != nil {
		return "", err
	}
	move := a.MoveFunc
	if move == nil {
		move = fileutil.MoveFile
	}
	if err := move(mediaRef, target); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", mediaRef, target, err)
	}
	return target, nil
}

func (a *Archiver) targetPath(mediaRef string) (string, error) {
	base := filepath.Base(mediaRef)
	target := filepath.Join(a.Dir, base)
	switch a.Collision {
	case "", CollisionOverwrite:
		if info, err := os.Stat(target); err == nil && info.IsDir() {
			return "", fmt.Errorf("archive target %q already exists as directory", target)
		}
		return target, nil
	case CollisionSuffix:
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		for n := 1; ; n++ {
			_, err := os.Lstat(target)
			if errors.Is(err, os.ErrNotExist) {
				return target, nil
			}
			if err != nil {
				return "", fmt.Errorf("stat candidate path: %w", err)
			}
			if n > maxSuffix {
				return "", fmt.Errorf("no free archive name for %s", base)
			}
			target = filepath.Join(a.Dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
		}
	default:
		return "", fmt.Errorf("unknown archive collision policy %q", a.Collision)
	}
}
