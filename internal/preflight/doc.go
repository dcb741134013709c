// Package preflight provides readiness checks for the files, directories and
// remote services a publishing run depends on.
//
// The CLI "pixelpost check" command runs RunAll and renders the results.
// "pixelpost run" does not call it: a run reports its own failures, and an
// empty queue must stay a no-op even when the network is down.
//
// Checks for optional features are skipped when the feature is disabled.
package preflight
