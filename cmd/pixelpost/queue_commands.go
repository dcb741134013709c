package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pixelpost/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and edit the publishing queue",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueuePeekCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List queued posts in publishing order",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.queueStore()
			if err != nil {
				return err
			}
			snap, err := store.ReadAll(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if snap.Empty() {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Media", "Caption", "Alt text", "Sensitive", "CW"},
				buildQueueRows(snap.Records()),
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
}

func buildQueueRows(records []queue.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for i, rec := range records {
		pos := strconv.Itoa(i + 1)
		item, err := queue.Parse(rec)
		if err != nil {
			rows = append(rows, []string{pos, strings.Join(rec, " "), "(malformed)", "", "", ""})
			continue
		}
		alt := item.AltText
		if alt == "" {
			alt = "-"
		}
		rows = append(rows, []string{
			pos,
			filepath.Base(item.MediaRef),
			item.Caption,
			alt,
			yesNo(item.Sensitive),
			item.ContentWarning,
		})
	}
	return rows
}

func newQueuePeekCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "peek",
		Short: "Show the post the next run will publish",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.queueStore()
			if err != nil {
				return err
			}
			snap, err := store.ReadAll(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if snap.Empty() {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			item, err := snap.Head()
			if err != nil {
				return fmt.Errorf("queue head: %w", err)
			}
			fmt.Fprintf(out, "Media:     %s\n", item.MediaRef)
			fmt.Fprintf(out, "Caption:   %s\n", item.Caption)
			if item.AltText != "" {
				fmt.Fprintf(out, "Alt text:  %s\n", item.AltText)
			} else {
				fmt.Fprintln(out, "Alt text:  (generated at publish time when auto_alt is on)")
			}
			fmt.Fprintf(out, "Sensitive: %s\n", yesNo(item.Sensitive))
			if item.ContentWarning != "" {
				fmt.Fprintf(out, "CW:        %s\n", item.ContentWarning)
			}
			fmt.Fprintf(out, "Queued:    %d\n", snap.Len())
			return nil
		},
	}
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var altText string
	var sensitive bool
	var contentWarning string
	var skipVerify bool

	cmd := &cobra.Command{
		Use:   "add <media> <caption>",
		Short: "Append a post to the end of the queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.queueStore()
			if err != nil {
				return err
			}
			media, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve media path: %w", err)
			}
			if !skipVerify {
				info, err := os.Stat(media)
				if err != nil {
					return fmt.Errorf("media %s: %w", media, err)
				}
				if !info.Mode().IsRegular() {
					return errors.New("media " + media + " is not a regular file")
				}
			}

			item := queue.Item{
				MediaRef:       media,
				Caption:        strings.TrimSpace(args[1]),
				AltText:        strings.TrimSpace(altText),
				Sensitive:      sensitive,
				ContentWarning: strings.TrimSpace(contentWarning),
			}
			if err := store.Append(cmd.Context(), item.Record()); err != nil {
				return err
			}
			snap, err := store.ReadAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s at position %d\n", filepath.Base(media), snap.Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&altText, "alt", "", "Alt text (leave empty to generate at publish time)")
	cmd.Flags().BoolVar(&sensitive, "sensitive", false, "Mark the media as sensitive")
	cmd.Flags().StringVar(&contentWarning, "cw", "", "Content warning / spoiler text")
	cmd.Flags().BoolVar(&skipVerify, "no-verify", false, "Do not check that the media file exists")
	return cmd
}
