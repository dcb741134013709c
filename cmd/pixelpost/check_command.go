package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pixelpost/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify paths, credentials, and the vision model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			lines := renderSectionHeader("pixelpost check", colorize)
			lines = append(lines, renderStatusLine("Config", statusOK, ctx.configPath, colorize))
			for _, r := range results {
				lines = append(lines, renderStatusLine(r.Name, resultKind(r), r.Detail, colorize))
			}
			fmt.Fprintln(out, strings.Join(lines, "\n"))

			if failed := preflight.Failed(results); failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(results))
			}
			return nil
		},
	}
}
