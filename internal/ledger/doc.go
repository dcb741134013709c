// Package ledger journals publications in SQLite so a crash between remote
// submission and queue advance does not produce a duplicate post.
//
// Each head record gets a fingerprint. Begin records a pending entry with an
// idempotency key and the revision of the queue file before submission;
// MarkPublished stores the remote receipt; MarkCommitted closes the entry once
// the queue has been rewritten. A later run that finds a published entry for
// the same fingerprint and the same queue revision skips the remote call and
// only advances the queue. A published entry whose queue file has since been
// rewritten is closed with MarkSuperseded.
//
// Schema changes bump the version in schema.go and add a migration from the
// previous version.
package ledger
