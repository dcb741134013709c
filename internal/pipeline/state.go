package pipeline

import (
	"errors"

	"pixelpost/internal/queue"
)

// State is a position in the publishing cycle.
type State string

const (
	StateIdle       State = "idle"
	StateLoaded     State = "loaded"
	StateEnriching  State = "enriching"
	StatePublishing State = "publishing"
	StateCommitted  State = "committed"
	StateArchived   State = "archived"
	StateAborted    State = "aborted"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateArchived || s == StateAborted
}

// Failure markers. Every aborted cycle with an error matches exactly one of
// these through errors.Is.
var (
	ErrMalformedRecord  = queue.ErrMalformedRecord
	ErrQueueUnreadable  = errors.New("queue unreadable")
	ErrEnrichmentFailed = errors.New("alt text enrichment failed")
	ErrPublishFailed    = errors.New("publish failed")
	ErrCommitFailed     = errors.New("queue commit failed")
	ErrArchiveFailed    = errors.New("archive failed")
)
