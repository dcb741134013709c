package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"pixelpost/internal/archive"
	"pixelpost/internal/caption"
	"pixelpost/internal/config"
	"pixelpost/internal/ledger"
	"pixelpost/internal/logging"
	"pixelpost/internal/notifications"
	"pixelpost/internal/pipeline"
	"pixelpost/internal/queue"
	"pixelpost/internal/resource"
	"pixelpost/internal/services"
	"pixelpost/internal/services/llm"
	"pixelpost/internal/services/pixelfed"
)

// ErrLocked is returned when another run holds the state-directory lock.
var ErrLocked = errors.New("another pixelpost run is in progress")

// Options configures a single run.
type Options struct {
	LogLevel string
	// Logger replaces the config-derived logger. Tests use it to silence output.
	Logger *slog.Logger
	// HTTPClient overrides the transport for Pixelfed and the vision model.
	HTTPClient *http.Client
	Notifier   notifications.Service
}

// Run performs one publishing cycle for cfg. The error is non-nil only when
// the run could not start; cycle failures are reported in the Result.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) (pipeline.Result, error) {
	if cfg == nil {
		return pipeline.Result{}, fmt.Errorf("config is required")
	}

	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := queue.NewStore(cfg.Paths.QueueFile, queue.WithDelimiter(cfg.DelimiterRune()))

	// An empty queue must not leave a run log, lock file or state directory
	// behind.
	snap, err := store.ReadAll(ctx)
	if err == nil && snap.Empty() {
		logger, err := newLogger(cfg, opts, false)
		if err != nil {
			return pipeline.Result{}, err
		}
		logger.Info("queue empty; nothing to publish",
			logging.String(logging.FieldEventType, "queue_empty"),
			logging.String("queue_file", cfg.Paths.QueueFile),
		)
		return pipeline.Result{State: pipeline.StateAborted, Path: []pipeline.State{pipeline.StateIdle, pipeline.StateAborted}}, nil
	}

	logger, err := newLogger(cfg, opts, true)
	if err != nil {
		return pipeline.Result{}, err
	}

	if cfg.Queue.Lock {
		unlock, err := acquireLock(cfg.LockPath())
		if err != nil {
			logging.WarnWithContext(logger, "run skipped", "run_locked",
				logging.Error(err),
				logging.String("lock", cfg.LockPath()),
				logging.String(logging.FieldErrorHint, "wait for the other run or remove a stale lock file"),
				logging.String(logging.FieldImpact, "queue left untouched"),
			)
			return pipeline.Result{}, err
		}
		defer unlock()
	}

	journal, closeJournal := newJournal(cfg, logger)
	defer closeJournal()

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	ctrl, err := pipeline.NewController(pipeline.Dependencies{
		Queue:     store,
		Enricher:  newEnricher(cfg, opts, logger),
		Publisher: newPublisher(cfg, opts),
		Archiver:  archive.New(cfg.Paths.ArchiveDir, cfg.Archive.Collision, logger),
		Journal:   journal,
		Notifier:  notifier,
		Logger:    logger,
	}, pipeline.Options{AutoAlt: cfg.Alt.AutoAlt})
	if err != nil {
		return pipeline.Result{}, err
	}
	return ctrl.RunCycle(ctx), nil
}

// newLogger returns opts.Logger when set. Otherwise a run with work gets a
// per-run log file linked as pixelpost.log; one without logs to stderr.
func newLogger(cfg *config.Config, opts Options, withRunLog bool) (*slog.Logger, error) {
	if opts.Logger != nil {
		return opts.Logger, nil
	}
	if !withRunLog {
		logger, err := logging.NewFromConfig(cfg, "", opts.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		return logger, nil
	}

	runLog := logging.RunLogPath(cfg.Paths.LogDir, time.Now())
	logger, err := logging.NewFromConfig(cfg, runLog, opts.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := logging.LinkCurrent(cfg.Paths.LogDir, runLog); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, runLog)
	return logger, nil
}

func acquireLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() { _ = lock.Unlock() }, nil
}

func newJournal(cfg *config.Config, logger *slog.Logger) (*resource.Lazy[pipeline.Journal], func()) {
	if !cfg.Ledger.Enabled {
		return nil, func() {}
	}
	var opened *ledger.Store
	lazy := resource.NewLazy(func(context.Context) (pipeline.Journal, error) {
		store, err := ledger.Open(cfg.LedgerPath())
		if err != nil {
			return nil, err
		}
		opened = store
		return store, nil
	})
	return lazy, func() {
		if opened == nil {
			return
		}
		if err := opened.Close(); err != nil {
			logger.Debug("close publish journal", logging.Error(err))
		}
	}
}

func newEnricher(cfg *config.Config, opts Options, logger *slog.Logger) caption.Enricher {
	if !cfg.Alt.AutoAlt {
		return nil
	}
	model := resource.NewLazy(func(context.Context) (caption.Model, error) {
		settings := cfg.GetLLM()
		if settings.APIKey == "" {
			return nil, services.Wrap(services.ErrConfiguration, "enrich", "load model", "llm.api_key is not set", nil)
		}
		client := llm.NewClient(llm.Config{
			APIKey:         settings.APIKey,
			BaseURL:        settings.BaseURL,
			Model:          settings.Model,
			Referer:        settings.Referer,
			Title:          settings.Title,
			TimeoutSeconds: settings.TimeoutSeconds,
		}, llm.WithHTTPClient(opts.HTTPClient))
		return caption.NewVisionModel(client, cfg.LLM.Prompt), nil
	})
	return caption.NewService(model, caption.Options{
		Prefix:    cfg.Alt.AltPrefix,
		MaxLength: cfg.Alt.MaxAltLength,
	}, logger)
}

// credentialGate defers the credentials check until something is actually
// published, so an empty queue never needs a token.
type credentialGate struct {
	cfg    *config.Config
	client *pixelfed.Client
}

func (g credentialGate) Publish(ctx context.Context, sub pixelfed.Submission) (pixelfed.Receipt, error) {
	if strings.TrimSpace(g.cfg.Pixelfed.BaseURL) == "" || strings.TrimSpace(g.cfg.Pixelfed.AccessToken) == "" {
		return pixelfed.Receipt{}, services.Wrap(services.ErrConfiguration, "publish", "credentials", "", g.cfg.RequirePublishing())
	}
	return g.client.Publish(ctx, sub)
}

func newPublisher(cfg *config.Config, opts Options) pipeline.Publisher {
	var clientOpts []pixelfed.Option
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, pixelfed.WithHTTPClient(opts.HTTPClient))
	}
	client := pixelfed.NewClient(pixelfed.Config{
		BaseURL:        cfg.Pixelfed.BaseURL,
		AccessToken:    cfg.Pixelfed.AccessToken,
		Visibility:     cfg.Pixelfed.Visibility,
		TimeoutSeconds: cfg.Pixelfed.TimeoutSeconds,
	}, clientOpts...)
	return credentialGate{cfg: cfg, client: client}
}
