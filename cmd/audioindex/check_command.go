package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"audioindex/internal/audioservice"
	"audioindex/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check directories, index files and backend reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(c context.Context, svc *audioservice.Service) error {
				results := preflight.RunAll(c, cfg, svc.Backend())
				failed := preflight.Failed(results)

				if ctx.jsonOutput() {
					if err := writeJSON(cmd, results); err != nil {
						return err
					}
				} else {
					out := cmd.OutOrStdout()
					colorize := shouldColorize(out)
					for _, line := range renderSectionHeader(fmt.Sprintf("audioindex (%s backend)", svc.Mode()), colorize) {
						fmt.Fprintln(out, line)
					}
					for _, r := range results {
						kind := statusOK
						if !r.Passed {
							kind = statusError
						}
						fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
					}
				}

				if len(failed) > 0 {
					return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
				}
				return nil
			})
		},
	}
}
