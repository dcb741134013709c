package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pixelpost/internal/archive"
	"pixelpost/internal/caption"
	"pixelpost/internal/ledger"
	"pixelpost/internal/logging"
	"pixelpost/internal/notifications"
	"pixelpost/internal/queue"
	"pixelpost/internal/resource"
	"pixelpost/internal/services"
	"pixelpost/internal/services/pixelfed"
)

// QueueStore reads and rewrites the queue file.
type QueueStore interface {
	ReadAll(ctx context.Context) (queue.Snapshot, error)
	Replace(ctx context.Context, records []queue.Record) error
}

// Publisher posts one item to the remote service.
type Publisher interface {
	Publish(ctx context.Context, sub pixelfed.Submission) (pixelfed.Receipt, error)
}

// Archiver relocates a published media file.
type Archiver interface {
	Archive(ctx context.Context, mediaRef string) archive.Outcome
}

// Journal records publish attempts so an interrupted cycle can be finished
// without posting twice. *ledger.Store satisfies it.
type Journal interface {
	Lookup(ctx context.Context, fingerprint string) (*ledger.Entry, error)
	Begin(ctx context.Context, intent ledger.Intent) (*ledger.Entry, error)
	MarkPublished(ctx context.Context, id int64, receipt ledger.Receipt) error
	MarkCommitted(ctx context.Context, id int64) error
	MarkSuperseded(ctx context.Context, id int64) error
}

// Dependencies wires the collaborators of a Controller. Enricher, Journal,
// Archiver and Notifier are optional.
type Dependencies struct {
	Queue     QueueStore
	Enricher  caption.Enricher
	Publisher Publisher
	Archiver  Archiver
	Journal   *resource.Lazy[Journal]
	Notifier  notifications.Service
	Logger    *slog.Logger
}

// Options tunes cycle behavior.
type Options struct {
	// AutoAlt enables vision enrichment for items without alt text.
	AutoAlt bool
}

// Controller drives single publishing cycles.
type Controller struct {
	queue     QueueStore
	enricher  caption.Enricher
	publisher Publisher
	archiver  Archiver
	journal   *resource.Lazy[Journal]
	notifier  notifications.Service
	logger    *slog.Logger
	opts      Options
	newID     func() string
}

// NewController assembles a controller. Queue and Publisher are required.
func NewController(deps Dependencies, opts Options) (*Controller, error) {
	if deps.Queue == nil {
		return nil, errors.New("pipeline: queue store is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("pipeline: publisher is required")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &Controller{
		queue:     deps.Queue,
		enricher:  deps.Enricher,
		publisher: deps.Publisher,
		archiver:  deps.Archiver,
		journal:   deps.Journal,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(deps.Logger, "pipeline"),
		opts:      opts,
		newID:     uuid.NewString,
	}, nil
}

// cycle holds per-run state shared between steps.
type cycle struct {
	ctx     context.Context
	logger  *slog.Logger
	result  Result
	snap    queue.Snapshot
	journal Journal
	entry   *ledger.Entry
	started time.Time
}

// RunCycle processes at most one queue item. The returned Result is always
// populated; Result.Err is nil for success, an empty queue, or a cycle that
// only failed to archive.
func (c *Controller) RunCycle(ctx context.Context) Result {
	requestID := c.newID()
	ctx = services.WithRequestID(ctx, requestID)
	cy := &cycle{
		ctx:     ctx,
		logger:  logging.WithContext(ctx, c.logger),
		started: time.Now(),
	}
	cy.result.RequestID = requestID
	cy.result.enter(StateIdle)

	if !c.load(cy) {
		return cy.result
	}
	c.openJournal(cy)

	if c.recover(cy) {
		if !c.commit(cy) {
			return cy.result
		}
		c.finish(cy)
		return cy.result
	}

	if !c.enrich(cy) {
		return cy.result
	}
	if !c.publish(cy) {
		return cy.result
	}
	if !c.commit(cy) {
		return cy.result
	}
	c.finish(cy)
	return cy.result
}

func (c *Controller) load(cy *cycle) bool {
	ctx := services.WithStage(cy.ctx, "load")
	snap, err := c.queue.ReadAll(ctx)
	if err != nil {
		c.abort(cy, "load", services.Wrap(ErrQueueUnreadable, "load", "read queue", "", err),
			"check queue_file path and permissions")
		return false
	}
	if snap.Empty() {
		cy.logger.Info("queue empty; nothing to publish",
			logging.String(logging.FieldEventType, "queue_empty"))
		cy.result.enter(StateAborted)
		return false
	}
	cy.snap = snap

	item, err := snap.Head()
	if err != nil {
		c.abort(cy, "load", services.Wrap(ErrMalformedRecord, "load", "parse head", "", err),
			"fix or remove the first line of the queue file")
		return false
	}
	cy.result.Item = item
	cy.ctx = services.WithMediaRef(cy.ctx, item.MediaRef)
	cy.logger = logging.WithContext(cy.ctx, c.logger)
	cy.result.enter(StateLoaded)
	cy.logger.Info("queue head loaded",
		logging.String(logging.FieldEventType, "head_loaded"),
		logging.Int("queue_length", snap.Len()),
		logging.Bool("has_alt_text", item.AltText != ""),
	)
	return true
}

// openJournal resolves the lazy journal. A journal that cannot be opened
// degrades the cycle to unjournaled publishing.
func (c *Controller) openJournal(cy *cycle) {
	if c.journal == nil {
		return
	}
	j, err := c.journal.Get(cy.ctx)
	if err != nil {
		logging.WarnWithContext(cy.logger, "publish journal unavailable", "journal_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions or disable ledger.enabled"),
			logging.String(logging.FieldImpact, "an interrupted run may post this item twice"),
		)
		return
	}
	cy.journal = j
}

// recover reports whether the head was already published by an earlier run
// that stopped before advancing the queue. Recovery only applies while the
// queue file is the one that run read; a rewritten file means the head is a
// new item even when its line is identical.
func (c *Controller) recover(cy *cycle) bool {
	if cy.journal == nil {
		return false
	}
	entry, err := cy.journal.Lookup(cy.ctx, ledger.Fingerprint(cy.snap.HeadRecord()))
	if err != nil {
		c.journalWarning(cy, "lookup", err)
		return false
	}
	if entry == nil {
		return false
	}
	if entry.State != ledger.StatePublished {
		cy.logger.Info("resuming pending publish attempt",
			logging.String(logging.FieldEventType, "journal_resume"),
			logging.Int64("journal_id", entry.ID),
		)
		return false
	}
	if entry.QueueRevision == "" || entry.QueueRevision != cy.snap.Revision() {
		c.supersede(cy, entry)
		return false
	}

	cy.entry = entry
	cy.result.Recovered = true
	cy.result.Receipt = pixelfed.Receipt{
		MediaID:  entry.MediaID,
		StatusID: entry.StatusID,
		URL:      entry.StatusURL,
	}
	logging.WarnWithContext(cy.logger, "head already published; advancing queue without reposting", "journal_recovered",
		logging.Int64("journal_id", entry.ID),
		logging.String("status_url", entry.StatusURL),
		logging.String(logging.FieldErrorHint, "a previous run stopped after publishing"),
		logging.String(logging.FieldImpact, "no new post is created this run"),
	)
	return true
}

// supersede closes a published entry left open by a run whose queue file has
// since been rewritten. If the journal cannot record that, the cycle publishes
// without it so the stale entry's key is not reused.
func (c *Controller) supersede(cy *cycle, entry *ledger.Entry) {
	if err := cy.journal.MarkSuperseded(cy.ctx, entry.ID); err != nil {
		c.journalWarning(cy, "mark superseded", err)
		cy.journal = nil
		return
	}
	cy.logger.Info("stale journal entry superseded; publishing head as a new item",
		logging.String(logging.FieldEventType, "journal_superseded"),
		logging.Int64("journal_id", entry.ID),
		logging.String("status_url", entry.StatusURL),
	)
}

func (c *Controller) enrich(cy *cycle) bool {
	item := &cy.result.Item
	if item.AltText != "" || !c.opts.AutoAlt || c.enricher == nil {
		return true
	}
	cy.result.enter(StateEnriching)
	ctx := services.WithStage(cy.ctx, "enrich")
	logger := logging.WithContext(ctx, c.logger)
	start := time.Now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	alt, err := c.enricher.Describe(ctx, item.MediaRef)
	if err != nil {
		hint := "check the vision model configuration or add alt text to the queue line"
		if errors.Is(err, caption.ErrResourceNotFound) {
			hint = "media file is missing or not an image"
		}
		c.abort(cy, "enrich", services.Wrap(ErrEnrichmentFailed, "enrich", "describe image", "", err), hint)
		return false
	}
	item.AltText = alt
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(start)),
		logging.Int("alt_length", len([]rune(alt))),
	)
	return true
}

func (c *Controller) publish(cy *cycle) bool {
	cy.result.enter(StatePublishing)
	ctx := services.WithStage(cy.ctx, "publish")
	logger := logging.WithContext(ctx, c.logger)
	item := cy.result.Item

	if cy.journal != nil {
		entry, err := cy.journal.Begin(ctx, ledger.Intent{
			Fingerprint:   ledger.Fingerprint(cy.snap.HeadRecord()),
			MediaRef:      item.MediaRef,
			Caption:       item.Caption,
			QueueRevision: cy.snap.Revision(),
		})
		if err != nil {
			c.journalWarning(cy, "begin", err)
		} else {
			cy.entry = entry
		}
	}

	sub := pixelfed.Submission{
		MediaRef:       item.MediaRef,
		Caption:        item.Caption,
		AltText:        item.AltText,
		Sensitive:      item.Sensitive,
		ContentWarning: item.ContentWarning,
	}
	if cy.entry != nil {
		sub.IdempotencyKey = cy.entry.IdempotencyKey
	}

	start := time.Now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	receipt, err := c.publisher.Publish(ctx, sub)
	if err != nil {
		c.abort(cy, "publish", services.Wrap(ErrPublishFailed, "publish", "submit post", "", err), publishHint(err))
		return false
	}
	cy.result.Receipt = receipt
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(start)),
		logging.String("status_id", receipt.StatusID),
		logging.String("status_url", receipt.URL),
	)

	if cy.entry != nil {
		err := cy.journal.MarkPublished(ctx, cy.entry.ID, ledger.Receipt{
			MediaID:   receipt.MediaID,
			StatusID:  receipt.StatusID,
			StatusURL: receipt.URL,
		})
		if err != nil {
			c.journalWarning(cy, "mark published", err)
		}
	}
	return true
}

// commit removes the head from the queue file. This is the only step that
// changes the queue.
func (c *Controller) commit(cy *cycle) bool {
	ctx := services.WithStage(cy.ctx, "commit")
	rest := cy.snap.Rest()
	if err := c.queue.Replace(ctx, rest); err != nil {
		hint := "post is live; remove the first queue line by hand to avoid a duplicate"
		if cy.entry != nil {
			hint = "post is live; the next run will advance the queue from the journal"
		}
		c.abort(cy, "commit", services.Wrap(ErrCommitFailed, "commit", "rewrite queue", "", err), hint)
		return false
	}
	cy.result.Remaining = len(rest)
	cy.result.enter(StateCommitted)
	logging.WithContext(ctx, c.logger).Info("queue advanced",
		logging.String(logging.FieldEventType, "queue_committed"),
		logging.Int("remaining", len(rest)),
	)

	if cy.entry != nil {
		if err := cy.journal.MarkCommitted(ctx, cy.entry.ID); err != nil {
			c.journalWarning(cy, "mark committed", err)
		}
	}
	return true
}

// finish archives the media and sends the success notification. Neither can
// fail the cycle.
func (c *Controller) finish(cy *cycle) {
	ctx := services.WithStage(cy.ctx, "archive")
	if c.archiver != nil {
		outcome := c.archiver.Archive(ctx, cy.result.Item.MediaRef)
		if outcome.OK() {
			cy.result.ArchivePath = outcome.Path
			cy.result.enter(StateArchived)
		} else {
			cy.result.ArchiveErr = services.Wrap(ErrArchiveFailed, "archive", "move media", "", outcome.Err)
		}
	}

	if err := c.notifier.NotifyPublished(cy.ctx, cy.result.Item.MediaRef, cy.result.Receipt.URL, cy.result.Remaining); err != nil {
		cy.logger.Debug("published notification failed", logging.Error(err))
	}
	cy.logger.Info("cycle completed",
		logging.String(logging.FieldEventType, "cycle_complete"),
		logging.String("final_state", string(cy.result.State)),
		logging.String("status_url", cy.result.Receipt.URL),
		logging.Bool("recovered", cy.result.Recovered),
		logging.Duration("cycle_duration", time.Since(cy.started)),
	)
}

func (c *Controller) abort(cy *cycle, stage string, err error, hint string) {
	cy.result.Err = err
	cy.result.enter(StateAborted)

	logger := logging.WithContext(services.WithStage(cy.ctx, stage), c.logger)
	logging.ErrorWithContext(logger, "cycle aborted", "stage_failure",
		logging.String(logging.FieldErrorKind, errorKind(err)),
		logging.Bool("retry_next_run", services.IsTransient(err)),
		logging.String(logging.FieldErrorHint, hint),
		logging.Error(err),
	)
	label := stage
	if ref := strings.TrimSpace(cy.result.Item.MediaRef); ref != "" {
		label = stage + " " + ref
	}
	if nerr := c.notifier.NotifyError(cy.ctx, err, label); nerr != nil {
		logger.Debug("error notification failed", logging.Error(nerr))
	}
}

func (c *Controller) journalWarning(cy *cycle, op string, err error) {
	logging.WarnWithContext(cy.logger, "publish journal "+op+" failed", "journal_error",
		logging.Error(err),
		logging.String(logging.FieldImpact, "crash recovery is unavailable for this item"),
	)
}

func errorKind(err error) string {
	var rejected *pixelfed.RemoteRejectedError
	switch {
	case errors.Is(err, pixelfed.ErrMediaNotFound), errors.Is(err, caption.ErrResourceNotFound):
		return "media_not_found"
	case errors.As(err, &rejected):
		return "remote_rejected"
	case errors.Is(err, ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(err, ErrEnrichmentFailed):
		return "enrichment"
	case errors.Is(err, ErrCommitFailed):
		return "commit"
	case errors.Is(err, ErrQueueUnreadable):
		return "queue_io"
	default:
		return "transport"
	}
}

func publishHint(err error) string {
	var rejected *pixelfed.RemoteRejectedError
	switch {
	case errors.Is(err, pixelfed.ErrMediaNotFound):
		return "media file is missing; fix the queue line or restore the file"
	case errors.As(err, &rejected) && rejected.StatusCode == 401:
		return "access token rejected; check pixelfed.access_token"
	case errors.As(err, &rejected) && rejected.Temporary():
		return "server busy or rate limited; the next run retries"
	case errors.As(err, &rejected):
		return "server rejected the post; check caption and media"
	default:
		return "network failure; the next run retries the same item"
	}
}
