// Package logs reads the per-run log files written under log_dir.
//
// Latest resolves the newest run log, Last returns its trailing lines, and
// Follow polls for lines appended afterwards. Only complete lines are
// returned; a partially written final line waits for its newline.
package logs
