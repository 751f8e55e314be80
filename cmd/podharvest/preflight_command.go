package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podharvest/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check external tools, directories, and endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			depRows := make([][]string, 0, 4)
			missingRequired := false
			for _, status := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				state := "ok"
				detail := status.Description
				if !status.Available {
					state = "missing"
					detail = status.Detail
					if !status.Optional {
						missingRequired = true
					}
				}
				depRows = append(depRows, []string{status.Name, status.Command, state, detail})
			}
			fmt.Fprintln(out, "External tools")
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Command", "Status", "Detail"},
				depRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))

			checkRows := make([][]string, 0, 4)
			failedChecks := 0
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				state := "ok"
				if !result.Passed {
					state = "failed"
					failedChecks++
				}
				checkRows = append(checkRows, []string{result.Name, state, result.Detail})
			}
			fmt.Fprintln(out, "Checks")
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Status", "Detail"},
				checkRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if missingRequired {
				return fmt.Errorf("required external tools are missing")
			}
			if failedChecks > 0 {
				return fmt.Errorf("%d preflight check(s) failed", failedChecks)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
