package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"oszshare/internal/daemonctl"
	"oszshare/internal/endpoint"
	"oszshare/internal/services"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var local bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Probe the configured share server and local fallbacks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var res endpoint.Resolution
			handled := false
			if !local {
				handled, err = ctx.withDaemon(cmd.Context(), func(client *daemonctl.Client) error {
					var resolveErr error
					res, resolveErr = client.ResolveEndpoint(cmd.Context())
					return resolveErr
				})
				if err != nil {
					return err
				}
			}
			if !handled {
				res, err = endpoint.NewResolver(ctx.logger()).Resolve(services.WithTrigger(cmd.Context(), "cli"), cfg.Server.BaseURL)
				if err != nil {
					return err
				}
			}

			if jsonOut {
				return writeJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(res.Probes))
			for _, probe := range res.Probes {
				result := colorText("healthy", ansiGreen, colorize)
				if !probe.Healthy {
					result = colorText(probe.Reason, ansiRed, colorize)
				}
				rows = append(rows, []string{probe.BaseURL, result})
			}
			fmt.Fprintln(out, renderTable([]string{"Candidate", "Result"}, rows, nil))
			if res.OK {
				label := "configured"
				if res.AutoDetected {
					label = "auto-detected"
				}
				fmt.Fprintf(out, "Using %s server %s\n", label, res.BaseURL)
				return nil
			}
			fmt.Fprintln(out, colorText("No healthy share server found; uploads use "+res.BaseURL, ansiYellow, colorize))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&local, "local", false, "Probe from this process even when a daemon is running")
	return cmd
}
