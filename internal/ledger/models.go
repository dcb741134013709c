package ledger

import "time"

// State is the lifecycle position of a journal entry.
type State string

const (
	// StatePending is recorded before submission. The remote may or may not
	// have received the post.
	StatePending State = "pending"
	// StatePublished means the remote accepted the post but the queue has not
	// been advanced yet.
	StatePublished State = "published"
	// StateCommitted means the queue no longer holds the record.
	StateCommitted State = "committed"
	// StateSuperseded marks a published entry whose queue file was rewritten
	// before the commit was recorded. It is never recovered.
	StateSuperseded State = "superseded"
)

// Intent describes a submission about to be attempted.
type Intent struct {
	Fingerprint   string
	MediaRef      string
	Caption       string
	QueueRevision string
}

// Receipt carries the identifiers the remote returned.
type Receipt struct {
	MediaID   string
	StatusID  string
	StatusURL string
}

// Entry is one journal row.
type Entry struct {
	ID             int64
	Fingerprint    string
	MediaRef       string
	Caption        string
	IdempotencyKey string
	QueueRevision  string
	State          State
	MediaID        string
	StatusID       string
	StatusURL      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	PublishedAt    time.Time
	CommittedAt    time.Time
}
