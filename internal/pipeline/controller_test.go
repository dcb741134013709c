package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"pixelpost/internal/archive"
	"pixelpost/internal/caption"
	"pixelpost/internal/ledger"
	"pixelpost/internal/logging"
	"pixelpost/internal/pipeline"
	"pixelpost/internal/queue"
	"pixelpost/internal/resource"
	"pixelpost/internal/services/pixelfed"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type fakePublisher struct {
	err   error
	subs  []pixelfed.Submission
	errAt int
}

func (p *fakePublisher) Publish(_ context.Context, sub pixelfed.Submission) (pixelfed.Receipt, error) {
	p.subs = append(p.subs, sub)
	if p.err != nil && (p.errAt == 0 || p.errAt == len(p.subs)) {
		return pixelfed.Receipt{}, p.err
	}
	return pixelfed.Receipt{
		MediaID:  "m1",
		StatusID: "s1",
		URL:      "https://pixelfed.example/p/alice/s1",
	}, nil
}

type fakeEnricher struct {
	alt   string
	err   error
	calls int
}

func (e *fakeEnricher) Describe(context.Context, string) (string, error) {
	e.calls++
	return e.alt, e.err
}

type stubModel struct{ reply string }

func (m stubModel) Describe(context.Context, string, []byte) (string, error) {
	return m.reply, nil
}

type failingArchiver struct{}

func (failingArchiver) Archive(context.Context, string) archive.Outcome {
	return archive.Outcome{Err: errors.New("read-only file system")}
}

type recordingNotifier struct {
	published []string
	errs      []error
}

func (n *recordingNotifier) NotifyPublished(_ context.Context, mediaRef, _ string, _ int) error {
	n.published = append(n.published, mediaRef)
	return nil
}

func (n *recordingNotifier) NotifyError(_ context.Context, err error, _ string) error {
	n.errs = append(n.errs, err)
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

type fixture struct {
	dir       string
	queuePath string
	publisher *fakePublisher
	enricher  *fakeEnricher
	notifier  *recordingNotifier
}

func newFixture(t *testing.T, content string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:       dir,
		queuePath: filepath.Join(dir, "queue.csv"),
		publisher: &fakePublisher{},
		enricher:  &fakeEnricher{alt: "A dog"},
		notifier:  &recordingNotifier{},
	}
	if content != "" {
		if err := os.WriteFile(f.queuePath, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func (f *fixture) controller(t *testing.T, store pipeline.QueueStore, journal *resource.Lazy[pipeline.Journal], autoAlt bool) *pipeline.Controller {
	t.Helper()
	if store == nil {
		store = queue.NewStore(f.queuePath)
	}
	ctrl, err := pipeline.NewController(pipeline.Dependencies{
		Queue:     store,
		Enricher:  f.enricher,
		Publisher: f.publisher,
		Journal:   journal,
		Notifier:  f.notifier,
		Logger:    logging.NewNop(),
	}, pipeline.Options{AutoAlt: autoAlt})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return ctrl
}

func (f *fixture) queueContent(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.queuePath)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	return string(data)
}

func openJournal(t *testing.T, dir string) (*ledger.Store, *resource.Lazy[pipeline.Journal]) {
	t.Helper()
	store, err := ledger.Open(filepath.Join(dir, "state", "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, resource.Ready[pipeline.Journal](store)
}

func TestNewControllerRequiresQueueAndPublisher(t *testing.T) {
	if _, err := pipeline.NewController(pipeline.Dependencies{Publisher: &fakePublisher{}}, pipeline.Options{}); err == nil {
		t.Fatal("expected error without queue")
	}
	if _, err := pipeline.NewController(pipeline.Dependencies{Queue: queue.NewStore("q.csv")}, pipeline.Options{}); err == nil {
		t.Fatal("expected error without publisher")
	}
}

func TestRunCycleMissingQueueIsNoOp(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, "")
	f.queuePath = filepath.Join(dir, "missing", "queue.csv")
	journalOpened := false
	journal := resource.NewLazy(func(context.Context) (pipeline.Journal, error) {
		journalOpened = true
		return nil, errors.New("should not open")
	})

	res := f.controller(t, nil, journal, true).RunCycle(context.Background())
	if !res.NoOp() || res.Published() {
		t.Fatalf("expected no-op, got state=%s err=%v", res.State, res.Err)
	}
	if !slices.Equal(res.Path, []pipeline.State{pipeline.StateIdle, pipeline.StateAborted}) {
		t.Fatalf("unexpected path %v", res.Path)
	}
	if len(f.publisher.subs) != 0 || f.enricher.calls != 0 || journalOpened {
		t.Fatal("empty queue must not touch collaborators")
	}
	if len(f.notifier.errs)+len(f.notifier.published) != 0 {
		t.Fatal("empty queue must not notify")
	}
	if _, err := os.Stat(filepath.Join(dir, "missing")); !os.IsNotExist(err) {
		t.Fatalf("no files may be created, stat err=%v", err)
	}
}

func TestRunCycleBlankQueueIsNoOp(t *testing.T) {
	f := newFixture(t, "\n   \n")
	res := f.controller(t, nil, nil, true).RunCycle(context.Background())
	if !res.NoOp() {
		t.Fatalf("expected no-op, got %s %v", res.State, res.Err)
	}
	if got := f.queueContent(t); got != "\n   \n" {
		t.Fatalf("queue modified: %q", got)
	}
}

func TestRunCycleAdvancesExactlyOne(t *testing.T) {
	f := newFixture(t, "a.jpg;First;Alt one\nb.jpg;Second\nc.jpg;Third\n")
	ctrl := f.controller(t, nil, nil, true)

	res := ctrl.RunCycle(context.Background())
	if res.Err != nil || !res.Published() {
		t.Fatalf("expected success, got state=%s err=%v", res.State, res.Err)
	}
	if res.Remaining != 2 {
		t.Fatalf("expected 2 remaining, got %d", res.Remaining)
	}
	if got := f.queueContent(t); got != "b.jpg;Second\nc.jpg;Third\n" {
		t.Fatalf("unexpected queue %q", got)
	}
	if len(f.publisher.subs) != 1 || f.publisher.subs[0].AltText != "Alt one" {
		t.Fatalf("unexpected submissions %+v", f.publisher.subs)
	}
	if f.enricher.calls != 0 {
		t.Fatal("existing alt text must not be enriched")
	}
	if res.Receipt.URL == "" || res.RequestID == "" {
		t.Fatalf("receipt and request id expected: %+v", res)
	}
	if !slices.Equal(f.notifier.published, []string{"a.jpg"}) {
		t.Fatalf("unexpected published notifications %v", f.notifier.published)
	}
}

func TestRunCycleMalformedHeadLeavesQueue(t *testing.T) {
	const content = "lonely.jpg\nb.jpg;Second\n"
	f := newFixture(t, content)
	res := f.controller(t, nil, nil, true).RunCycle(context.Background())
	if !errors.Is(res.Err, pipeline.ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", res.Err)
	}
	if res.State != pipeline.StateAborted {
		t.Fatalf("expected aborted, got %s", res.State)
	}
	if got := f.queueContent(t); got != content {
		t.Fatalf("queue modified: %q", got)
	}
	if len(f.publisher.subs) != 0 {
		t.Fatal("malformed head must not be published")
	}
	if len(f.notifier.errs) != 1 {
		t.Fatalf("expected one error notification, got %d", len(f.notifier.errs))
	}
}

func TestRunCycleEnrichmentFailureLeavesQueue(t *testing.T) {
	const content = "a.jpg;Caption\n"
	f := newFixture(t, content)
	f.enricher.err = errors.New("model overloaded")

	res := f.controller(t, nil, nil, true).RunCycle(context.Background())
	if !errors.Is(res.Err, pipeline.ErrEnrichmentFailed) {
		t.Fatalf("expected ErrEnrichmentFailed, got %v", res.Err)
	}
	if !slices.Contains(res.Path, pipeline.StateEnriching) || slices.Contains(res.Path, pipeline.StatePublishing) {
		t.Fatalf("unexpected path %v", res.Path)
	}
	if got := f.queueContent(t); got != content {
		t.Fatalf("queue modified: %q", got)
	}
	if len(f.publisher.subs) != 0 {
		t.Fatal("publish must not be attempted after enrichment failure")
	}
}

func TestRunCyclePublishFailureLeavesQueue(t *testing.T) {
	const content = "a.jpg;Caption;Alt\nb.jpg;Next\n"
	tests := []struct {
		name string
		err  error
	}{
		{name: "rejected", err: &pixelfed.RemoteRejectedError{Op: "create status", StatusCode: 422, Body: "invalid"}},
		{name: "missing media", err: pixelfed.ErrMediaNotFound},
		{name: "transport", err: errors.New("connection refused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, content)
			f.publisher.err = tt.err
			res := f.controller(t, nil, nil, true).RunCycle(context.Background())
			if !errors.Is(res.Err, pipeline.ErrPublishFailed) || !errors.Is(res.Err, tt.err) {
				t.Fatalf("expected publish failure wrapping %v, got %v", tt.err, res.Err)
			}
			if got := f.queueContent(t); got != content {
				t.Fatalf("queue modified: %q", got)
			}
			if len(f.notifier.published) != 0 || len(f.notifier.errs) != 1 {
				t.Fatalf("unexpected notifications %+v", f.notifier)
			}
		})
	}
}

func TestRunCycleAltGating(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		autoAlt   bool
		wantCalls int
		wantAlt   string
	}{
		{name: "enriches missing alt", line: "a.jpg;Caption\n", autoAlt: true, wantCalls: 1, wantAlt: "A dog"},
		{name: "keeps supplied alt", line: "a.jpg;Caption;Given\n", autoAlt: true, wantCalls: 0, wantAlt: "Given"},
		{name: "whitespace alt counts as missing", line: "a.jpg;Caption;   \n", autoAlt: true, wantCalls: 1, wantAlt: "A dog"},
		{name: "auto alt off", line: "a.jpg;Caption\n", autoAlt: false, wantCalls: 0, wantAlt: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.line)
			res := f.controller(t, nil, nil, tt.autoAlt).RunCycle(context.Background())
			if res.Err != nil {
				t.Fatalf("RunCycle: %v", res.Err)
			}
			if f.enricher.calls != tt.wantCalls {
				t.Fatalf("enricher calls = %d, want %d", f.enricher.calls, tt.wantCalls)
			}
			if got := f.publisher.subs[0].AltText; got != tt.wantAlt {
				t.Fatalf("alt text = %q, want %q", got, tt.wantAlt)
			}
		})
	}
}

func TestRunCycleEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile("img1.jpg", pngHeader, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile("queue.csv", []byte("img1.jpg;Hello world;;0;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	enricher := caption.NewService(
		resource.Ready[caption.Model](stubModel{reply: "a dog"}),
		caption.Options{Prefix: "[AI]", MaxLength: 10},
		logging.NewNop(),
	)
	archiveDir := filepath.Join(dir, "archive")
	publisher := &fakePublisher{}
	ctrl, err := pipeline.NewController(pipeline.Dependencies{
		Queue:     queue.NewStore("queue.csv"),
		Enricher:  enricher,
		Publisher: publisher,
		Archiver:  archive.New(archiveDir, archive.CollisionOverwrite, logging.NewNop()),
		Logger:    logging.NewNop(),
	}, pipeline.Options{AutoAlt: true})
	if err != nil {
		t.Fatal(err)
	}

	res := ctrl.RunCycle(context.Background())
	if res.Err != nil || res.ArchiveErr != nil {
		t.Fatalf("unexpected errors: %v / %v", res.Err, res.ArchiveErr)
	}
	wantPath := []pipeline.State{
		pipeline.StateIdle, pipeline.StateLoaded, pipeline.StateEnriching,
		pipeline.StatePublishing, pipeline.StateCommitted, pipeline.StateArchived,
	}
	if !slices.Equal(res.Path, wantPath) {
		t.Fatalf("path = %v, want %v", res.Path, wantPath)
	}
	sub := publisher.subs[0]
	if sub.Caption != "Hello world" || sub.AltText != "[AI] A dog" || sub.Sensitive || sub.ContentWarning != "" {
		t.Fatalf("unexpected submission %+v", sub)
	}
	data, err := os.ReadFile("queue.csv")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Fatalf("expected empty queue, got %q", data)
	}
	if _, err := os.Stat("img1.jpg"); !os.IsNotExist(err) {
		t.Fatalf("media should have moved, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(archiveDir, "img1.jpg")); err != nil {
		t.Fatalf("archived media missing: %v", err)
	}
	if res.ArchivePath != filepath.Join(archiveDir, "img1.jpg") {
		t.Fatalf("archive path = %q", res.ArchivePath)
	}
}

func TestRunCycleArchiveFailureKeepsCommit(t *testing.T) {
	f := newFixture(t, "a.jpg;Caption;Alt\n")
	ctrl, err := pipeline.NewController(pipeline.Dependencies{
		Queue:     queue.NewStore(f.queuePath),
		Publisher: f.publisher,
		Archiver:  failingArchiver{},
		Notifier:  f.notifier,
		Logger:    logging.NewNop(),
	}, pipeline.Options{})
	if err != nil {
		t.Fatal(err)
	}

	res := ctrl.RunCycle(context.Background())
	if res.Err != nil {
		t.Fatalf("archive failure must not fail the cycle: %v", res.Err)
	}
	if res.State != pipeline.StateCommitted || !res.Published() {
		t.Fatalf("expected committed, got %s", res.State)
	}
	if !errors.Is(res.ArchiveErr, pipeline.ErrArchiveFailed) {
		t.Fatalf("expected ErrArchiveFailed, got %v", res.ArchiveErr)
	}
	if got := f.queueContent(t); got != "" {
		t.Fatalf("queue should be empty, got %q", got)
	}
	if len(f.notifier.published) != 1 {
		t.Fatal("success notification expected despite archive failure")
	}
}

func TestRunCycleRetryReusesIdempotencyKey(t *testing.T) {
	f := newFixture(t, "a.jpg;Caption;Alt\n")
	f.publisher.err = errors.New("timeout")
	f.publisher.errAt = 1
	store, journal := openJournal(t, f.dir)
	ctrl := f.controller(t, nil, journal, false)

	if res := ctrl.RunCycle(context.Background()); !errors.Is(res.Err, pipeline.ErrPublishFailed) {
		t.Fatalf("expected first attempt to fail, got %v", res.Err)
	}
	res := ctrl.RunCycle(context.Background())
	if res.Err != nil {
		t.Fatalf("second attempt: %v", res.Err)
	}
	if len(f.publisher.subs) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(f.publisher.subs))
	}
	first, second := f.publisher.subs[0].IdempotencyKey, f.publisher.subs[1].IdempotencyKey
	if first == "" || first != second {
		t.Fatalf("idempotency key must be reused: %q vs %q", first, second)
	}

	entries, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].State != ledger.StateCommitted || entries[0].StatusID != "s1" {
		t.Fatalf("unexpected journal entries %+v", entries)
	}
}

func TestRunCycleRecoversAfterCommitFailure(t *testing.T) {
	const content = "a.jpg;Caption;Alt\nb.jpg;Next\n"
	f := newFixture(t, content)
	store, journal := openJournal(t, f.dir)

	broken := queue.NewStore(f.queuePath, queue.WithRename(func(string, string) error {
		return errors.New("disk full")
	}))
	res := f.controller(t, broken, journal, false).RunCycle(context.Background())
	if !errors.Is(res.Err, pipeline.ErrCommitFailed) {
		t.Fatalf("expected ErrCommitFailed, got %v", res.Err)
	}
	if got := f.queueContent(t); got != content {
		t.Fatalf("queue modified after failed commit: %q", got)
	}
	entries, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].State != ledger.StatePublished {
		t.Fatalf("expected published journal entry, got %+v", entries)
	}

	res = f.controller(t, nil, journal, false).RunCycle(context.Background())
	if res.Err != nil || !res.Recovered {
		t.Fatalf("expected recovered cycle, got err=%v recovered=%v", res.Err, res.Recovered)
	}
	if len(f.publisher.subs) != 1 {
		t.Fatalf("recovery must not repost, got %d submissions", len(f.publisher.subs))
	}
	if res.Receipt.StatusID != "s1" {
		t.Fatalf("receipt should come from the journal, got %+v", res.Receipt)
	}
	if got := f.queueContent(t); got != "b.jpg;Next\n" {
		t.Fatalf("unexpected queue %q", got)
	}
}

// commitFailingJournal loses every MarkCommitted, leaving published entries
// open after the queue has already advanced.
type commitFailingJournal struct {
	*ledger.Store
}

func (commitFailingJournal) MarkCommitted(context.Context, int64) error {
	return errors.New("disk I/O error")
}

func TestRunCycleRequeuedIdenticalLineIsPublishedAgain(t *testing.T) {
	const line = "a.jpg;Caption;Alt\n"
	f := newFixture(t, line)
	store, _ := openJournal(t, f.dir)
	journal := resource.Ready[pipeline.Journal](commitFailingJournal{store})

	res := f.controller(t, nil, journal, false).RunCycle(context.Background())
	if res.Err != nil || !res.Published() {
		t.Fatalf("first cycle: state=%s err=%v", res.State, res.Err)
	}
	if got := f.queueContent(t); got != "" {
		t.Fatalf("queue should be empty after first cycle, got %q", got)
	}

	// The same line is queued again by hand.
	if err := os.WriteFile(f.queuePath, []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}
	res = f.controller(t, nil, journal, false).RunCycle(context.Background())
	if res.Err != nil {
		t.Fatalf("second cycle: %v", res.Err)
	}
	if res.Recovered {
		t.Fatal("a requeued line must not be treated as an interrupted publish")
	}
	if len(f.publisher.subs) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(f.publisher.subs))
	}
	if f.publisher.subs[0].IdempotencyKey == f.publisher.subs[1].IdempotencyKey {
		t.Fatal("requeued line must get a fresh idempotency key")
	}
	if got := f.queueContent(t); got != "" {
		t.Fatalf("unexpected queue %q", got)
	}

	entries, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[1].State != ledger.StateSuperseded || entries[0].State != ledger.StatePublished {
		t.Fatalf("unexpected journal entries %+v", entries)
	}
}

func TestRunCycleJournalUnavailableStillPublishes(t *testing.T) {
	f := newFixture(t, "a.jpg;Caption;Alt\n")
	journal := resource.NewLazy(func(context.Context) (pipeline.Journal, error) {
		return nil, errors.New("permission denied")
	})
	res := f.controller(t, nil, journal, false).RunCycle(context.Background())
	if res.Err != nil || !res.Published() {
		t.Fatalf("expected publish without journal, got %s %v", res.State, res.Err)
	}
	if f.publisher.subs[0].IdempotencyKey != "" {
		t.Fatal("no idempotency key expected without a journal")
	}
}
