// Package runner assembles the collaborators for one "pixelpost run" and
// executes a single publishing cycle.
//
// It owns the process-level concerns around the pipeline: the per-run log
// file and its retention, the state-directory run lock, the lazily opened
// publish journal and vision model, and translating the cycle Result into
// the process exit decision.
package runner
