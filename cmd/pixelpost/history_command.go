package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"pixelpost/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent publish attempts from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.Ledger.Enabled {
				fmt.Fprintln(out, "Publish journal disabled (ledger.enabled = false)")
				return nil
			}
			path := cfg.LedgerPath()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "No publish history yet")
				return nil
			}

			store, err := ledger.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No publish history yet")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "State", "Media", "Status URL", "Updated"},
				buildHistoryRows(entries),
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

func buildHistoryRows(entries []ledger.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		url := e.StatusURL
		if url == "" {
			url = "-"
		}
		updated := "-"
		if !e.UpdatedAt.IsZero() {
			updated = e.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			string(e.State),
			filepath.Base(e.MediaRef),
			url,
			updated,
		})
	}
	return rows
}
