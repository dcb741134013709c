// Package pipeline runs one publishing cycle: read the queue, enrich the head
// with alt text when needed, publish it, advance the queue, then archive the
// media.
//
// The cycle is a small state machine:
//
//	Idle -> Loaded -> Enriching -> Publishing -> Committed -> Archived
//
// with Aborted as the terminal state for anything that stops early. Replacing
// the queue file is the point of no return. Everything before it leaves the
// queue byte-identical; everything after it (journal bookkeeping, archival,
// notifications) is best-effort and cannot undo a successful post.
//
// A publish journal (see package ledger) brackets the remote call so that a
// crash between a successful post and the queue rewrite is recovered on the
// next run without posting twice.
package pipeline
