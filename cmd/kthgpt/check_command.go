package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kthgpt/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, backends, and external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			problems := 0

			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					problems++
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("External tools", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, status := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				kind, detail := statusOK, status.Command
				if !status.Available {
					detail = status.Detail
					if status.Optional {
						kind = statusWarn
					} else {
						kind = statusError
						problems++
					}
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, detail, colorize))
			}

			if problems > 0 {
				return fmt.Errorf("%d check(s) failed", problems)
			}
			return nil
		},
	}
}
