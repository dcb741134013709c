// Package caption produces alt text for queued images.
//
// Service reads the image, asks a Model for a description, and normalizes the
// reply into a short accessible caption: trimmed, trailing periods removed,
// sentence-cased, optionally prefixed (e.g. "[AI]"), and cut to the configured
// rune budget. VisionModel implements Model on top of the llm client.
package caption
