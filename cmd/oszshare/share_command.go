package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"oszshare/internal/config"
	"oszshare/internal/daemon"
	"oszshare/internal/daemonctl"
	"oszshare/internal/daemonrun"
	"oszshare/internal/logging"
	"oszshare/internal/services"
	"oszshare/internal/share"
)

func newShareCommand(ctx *commandContext) *cobra.Command {
	var expiry int
	var setDir string
	var local bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:     "share",
		Aliases: []string{"upload"},
		Short:   "Upload the current beatmap set and print the share link",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := setDir
			if dir != "" {
				if dir, err = config.ExpandPath(dir); err != nil {
					return fmt.Errorf("resolve set directory: %w", err)
				}
			}

			var outcome *share.Outcome
			handled := false
			if !local {
				handled, err = ctx.withDaemon(cmd.Context(), func(client *daemonctl.Client) error {
					var shareErr error
					outcome, shareErr = client.Share(cmd.Context(), daemon.ShareRequest{ExpiryMinutes: expiry, SetDir: dir})
					return shareErr
				})
				if err != nil {
					return err
				}
			}
			if !handled {
				err = ctx.withEngine(func(c *daemonrun.Components, logger *slog.Logger) error {
					runCtx := services.WithTrigger(cmd.Context(), "cli")
					if cfg.Server.AutoDetect {
						res, resolveErr := c.Endpoints.Resolve(runCtx, cfg.Server.BaseURL)
						if resolveErr != nil {
							return resolveErr
						}
						if res.OK {
							c.Uploader.SetBaseURL(res.BaseURL)
						} else {
							logger.Warn("no healthy share server found; using configured server",
								logging.String("server", c.Uploader.BaseURL()))
						}
					}
					var shareErr error
					outcome, shareErr = c.Share.Share(runCtx, share.Request{ExpiryMinutes: expiry, SetDir: dir})
					return shareErr
				})
				if err != nil {
					if hint := services.Hint(err); hint != "" && !jsonOut {
						return fmt.Errorf("%w (%s)", err, hint)
					}
					return err
				}
			}

			if jsonOut {
				return writeJSON(cmd, outcome)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, colorText(outcome.Result.URL, ansiGreen, colorize))
			rows := [][]string{
				{"Beatmap", beatmapLabel(outcome.Beatmap)},
				{"Server", outcome.Server},
				{"Size", formatBytes(outcome.Result.SizeBytes)},
				{"Expires", formatExpiry(outcome.Result.ExpiresAt, time.Now())},
			}
			if outcome.Beatmap == nil {
				rows[0] = []string{"Set directory", outcome.SetDir}
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().IntVarP(&expiry, "expiry", "e", 0, "Link lifetime in minutes (default from config)")
	cmd.Flags().StringVar(&setDir, "dir", "", "Share this beatmap set directory instead of the detected one")
	cmd.Flags().BoolVar(&local, "local", false, "Upload from this process even when a daemon is running")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
