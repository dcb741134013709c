// Package queue stores pending posts in a delimited text file and exposes the
// read-all and atomic-replace primitives the publishing pipeline is built on.
//
// One line is one post: media reference, caption, then optional alt text,
// sensitive flag and content warning. Records round-trip verbatim; only the
// head is parsed into an Item, by Parse. Replace writes the complete new
// content to a sibling temp file and renames it into place, so readers only
// ever see the whole old queue or the whole new one.
package queue
