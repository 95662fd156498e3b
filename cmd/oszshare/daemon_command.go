package main

import (
	"github.com/spf13/cobra"

	"oszshare/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the oszshare daemon in the foreground",
		Long: "Run the oszshare daemon in the foreground.\n\n" +
			"The daemon polls the game for the open beatmap, resolves the share server, " +
			"and serves the local API used by `oszshare share` and `oszshare status`.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}
