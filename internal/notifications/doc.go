// Package notifications delivers publishing events to ntfy.
//
// NewService returns an ntfy-backed Service when a topic URL is configured and
// a no-op otherwise, so callers never branch on configuration. Per-event
// toggles (published, errors) are honoured inside the service. Delivery is
// best-effort: callers log a failed send and carry on.
package notifications
