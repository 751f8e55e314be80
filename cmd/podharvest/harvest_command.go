package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"podharvest/internal/harvest"
)

func newHarvestCommand(ctx *commandContext) *cobra.Command {
	var channels []string
	var maxChannels int
	var forceReindex bool
	var noSkip bool

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Index channels, fetch missing items, and summarize transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			orchestrator, closer, err := ctx.newOrchestrator()
			if err != nil {
				return err
			}
			defer closer()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := orchestrator.Run(runCtx, harvest.RunOptions{
				Channels:     channels,
				MaxChannels:  maxChannels,
				ForceReindex: forceReindex,
				NoSkip:       noSkip,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(report.Channels))
			for _, ch := range report.Channels {
				status := "ok"
				if ch.Err != nil {
					status = ch.Err.Error()
				}
				rows = append(rows, []string{
					ch.Channel,
					strconv.Itoa(ch.Fetched),
					strconv.Itoa(ch.Redownloaded),
					strconv.Itoa(ch.Skipped),
					strconv.Itoa(ch.Failed),
					strconv.Itoa(ch.Summarized),
					status,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Channel", "Fetched", "Redone", "Skipped", "Failed", "Summarized", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))

			summary := fmt.Sprintf("Run %s: %d fetched, %d failed across %d channels in %s",
				report.RunID, report.TotalFetched(), report.TotalFailed(),
				len(report.Channels), report.FinishedAt.Sub(report.StartedAt).Round(time.Second))
			if isTerminal(out) && report.TotalFailed() == 0 && report.FailedChannels() == 0 {
				summary = "\x1b[32m" + summary + "\x1b[0m"
			}
			fmt.Fprintln(out, summary)

			if report.FailedChannels() == len(report.Channels) {
				return fmt.Errorf("all %d channels failed", len(report.Channels))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&channels, "channels", nil, "Only harvest the named channels (comma separated)")
	cmd.Flags().IntVar(&maxChannels, "max-channels", 0, "Bound on the number of channels processed")
	cmd.Flags().BoolVar(&forceReindex, "force-reindex", false, "Rebuild channel catalogs from scratch, ignoring persisted ones")
	cmd.Flags().BoolVar(&noSkip, "no-skip", false, "Fetch items the download ledger would otherwise skip")
	return cmd
}
