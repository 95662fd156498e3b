package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"oszshare/internal/daemonctl"
	"oszshare/internal/daemonrun"
	"oszshare/internal/detect"
)

var errNoBeatmapDetected = errors.New("no beatmap detected; is osu! running with a beatmap selected?")

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var local bool

	cmd := &cobra.Command{
		Use:     "detect",
		Aliases: []string{"current"},
		Short:   "Show the beatmap currently open in osu!",
		RunE: func(cmd *cobra.Command, args []string) error {
			var info *detect.Info
			handled := false
			if !local {
				var err error
				handled, err = ctx.withDaemon(cmd.Context(), func(client *daemonctl.Client) error {
					var currentErr error
					info, currentErr = client.Current(cmd.Context(), true)
					if errors.Is(currentErr, daemonctl.ErrNoBeatmap) {
						return nil
					}
					return currentErr
				})
				if err != nil {
					return err
				}
			}
			if !handled {
				err := ctx.withEngine(func(c *daemonrun.Components, _ *slog.Logger) error {
					var detectErr error
					info, detectErr = c.Detector.DetectCurrent(cmd.Context())
					return detectErr
				})
				if err != nil {
					return err
				}
			}

			if info == nil {
				return errNoBeatmapDetected
			}
			if jsonOut {
				return writeJSON(cmd, info)
			}
			printBeatmap(cmd.OutOrStdout(), info)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&local, "local", false, "Detect in this process even when a daemon is running")
	return cmd
}
