package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"pixelpost/internal/pipeline"
	"pixelpost/internal/runner"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var failOnError bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Publish the head of the queue and advance it",
		Long: "Publish the first queue line, remove it from the queue, and archive its media.\n" +
			"An empty or missing queue is a no-op. Intended for cron or a systemd timer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			res, err := runner.Run(cmd.Context(), cfg, runner.Options{LogLevel: ctx.logLevel()})
			if errors.Is(err, runner.ErrLocked) {
				fmt.Fprintln(out, "Another run is in progress; skipped")
				if failOnError {
					return err
				}
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(out, summarizeResult(res))
			if res.Err != nil && failOnError {
				return res.Err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "Exit non-zero when the cycle aborts with an error")
	return cmd
}

func summarizeResult(res pipeline.Result) string {
	switch {
	case res.NoOp():
		return "Queue empty; nothing published"
	case res.Published():
		media := filepath.Base(res.Item.MediaRef)
		line := fmt.Sprintf("Published %s", media)
		if res.Receipt.URL != "" {
			line += " -> " + res.Receipt.URL
		}
		if res.Recovered {
			line += " (recovered from journal)"
		}
		line += fmt.Sprintf("\n%d left in queue", res.Remaining)
		if res.ArchiveErr != nil {
			line += fmt.Sprintf("\nWarning: media not archived: %v", res.ArchiveErr)
		}
		return line
	default:
		return fmt.Sprintf("Cycle aborted in %s: %v", lastActiveState(res.Path), res.Err)
	}
}

// lastActiveState names the state the cycle was in when it aborted.
func lastActiveState(path []pipeline.State) pipeline.State {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] != pipeline.StateAborted {
			return path[i]
		}
	}
	return pipeline.StateIdle
}
