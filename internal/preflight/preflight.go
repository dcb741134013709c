package preflight

import (
	"context"

	"pixelpost/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Skipped marks a check for a disabled feature.
	Skipped bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckQueueFile("Queue file", cfg.Paths.QueueFile, cfg.DelimiterRune()),
		CheckCreatableDir("Archive directory", cfg.Paths.ArchiveDir),
		CheckCreatableDir("State directory", cfg.Paths.StateDir),
	}

	if cfg.Ledger.Enabled {
		results = append(results, CheckCreatableDir("Publish journal", parentDir(cfg.LedgerPath())))
	} else {
		results = append(results, Result{Name: "Publish journal", Passed: true, Skipped: true, Detail: "Disabled"})
	}

	results = append(results, CheckPixelfed(ctx, cfg))

	if cfg.Alt.AutoAlt {
		results = append(results, CheckLLM(ctx, "Vision LLM", cfg.GetLLM()))
	} else {
		results = append(results, Result{Name: "Vision LLM", Passed: true, Skipped: true, Detail: "auto_alt disabled"})
	}
	return results
}

// Failed counts results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
