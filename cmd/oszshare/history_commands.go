package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"oszshare/internal/history"
)

var errNoShares = errors.New("no shares recorded yet")

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open share history: %w", err)
	}
	return store, nil
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent shares",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				if entries == nil {
					entries = []history.Entry{}
				}
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, errNoShares.Error())
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				title := e.Title
				if e.Artist != "" {
					title = e.Artist + " - " + e.Title
				}
				if title == "" {
					title = e.SetDir
				}
				rows = append(rows, []string{
					strconv.FormatInt(e.ID, 10),
					e.CreatedAt.Local().Format("2006-01-02 15:04"),
					title,
					e.URL,
					formatBytes(e.SizeBytes),
					formatExpiry(e.ExpiresAt, now),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Shared", "Beatmap", "URL", "Size", "Expires"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum shares to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newLastCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "last",
		Short: "Print the most recent share link",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			entry, err := store.Last(cmd.Context())
			if err != nil {
				return err
			}
			if entry == nil {
				return errNoShares
			}
			if jsonOut {
				return writeJSON(cmd, entry)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, entry.URL)
			if entry.Expired(time.Now()) {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: this link has expired")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
