package pipeline

import (
	"pixelpost/internal/queue"
	"pixelpost/internal/services/pixelfed"
)

// Result describes a finished cycle.
type Result struct {
	RequestID   string
	State       State
	Path        []State
	Item        queue.Item
	Receipt     pixelfed.Receipt
	ArchivePath string
	// Remaining is the queue length after a commit.
	Remaining int
	// Recovered is set when the post was already live from an earlier run
	// and only the queue advance was performed.
	Recovered  bool
	Err        error
	ArchiveErr error
}

// Published reports whether the head was posted and dequeued.
func (r Result) Published() bool {
	return r.State == StateCommitted || r.State == StateArchived
}

// NoOp reports whether the cycle found nothing to do.
func (r Result) NoOp() bool {
	return r.State == StateAborted && r.Err == nil
}

func (r *Result) enter(s State) {
	r.State = s
	r.Path = append(r.Path, s)
}
