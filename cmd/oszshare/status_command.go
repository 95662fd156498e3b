package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"oszshare/internal/daemon"
	"oszshare/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status daemon.Status
			running, err := ctx.withDaemon(cmd.Context(), func(client *daemonctl.Client) error {
				var statusErr error
				status, statusErr = client.Status(cmd.Context())
				return statusErr
			})
			if err != nil {
				return err
			}
			if jsonOut {
				if !running {
					return writeJSON(cmd, map[string]any{"running": false})
				}
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if !running {
				fmt.Fprintln(out, colorText("Daemon: not running", ansiYellow, colorize))
				fmt.Fprintln(out, "Start it with `oszshare daemon`.")
				return nil
			}
			fmt.Fprintln(out, colorText(fmt.Sprintf("Daemon: running (pid %d)", status.PID), ansiGreen, colorize))
			rows := [][]string{
				{"Server", status.Server},
				{"Uploading", yesNo(status.Uploading)},
				{"Current beatmap", beatmapLabel(status.Current)},
				{"API", status.APIAddress},
				{"Lock file", status.LockFilePath},
				{"History", status.HistoryPath},
			}
			if !status.StartedAt.IsZero() {
				rows = append(rows, []string{"Uptime", time.Since(status.StartedAt).Round(time.Second).String()})
			}
			if status.Endpoint != nil {
				rows = append(rows, []string{"Server auto-detected", yesNo(status.Endpoint.AutoDetected)})
			}
			if status.LastShare != nil {
				rows = append(rows, []string{"Last share", status.LastShare.URL})
			}
			if status.LogPath != "" {
				rows = append(rows, []string{"Log", status.LogPath})
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
