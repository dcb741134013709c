// Package logging assembles structured slog loggers and formatting helpers used
// across pixelpost.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code automatically
// tags log lines with the cycle request ID, the media reference in flight,
// and the current stage. A no-op logger is provided for tests and for wiring
// code that cannot fail.
package logging
