package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"podharvest/internal/runlog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past harvest runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Runlog.Enabled {
				return fmt.Errorf("run history is disabled; set runlog.enabled = true")
			}
			store, err := runlog.Open(cfg.Runlog.Path)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if runID != "" {
				outcomes, err := store.ChannelOutcomes(cmd.Context(), runID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(outcomes))
				for _, o := range outcomes {
					rows = append(rows, []string{
						o.Channel,
						strconv.Itoa(o.Fetched),
						strconv.Itoa(o.Redownloaded),
						strconv.Itoa(o.Skipped),
						strconv.Itoa(o.Failed),
						strconv.Itoa(o.Summarized),
						o.Error,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Channel", "Fetched", "Redone", "Skipped", "Failed", "Summarized", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			}

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				duration := "-"
				if !run.FinishedAt.IsZero() {
					duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
				}
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					duration,
					strconv.Itoa(run.ChannelsTotal),
					strconv.Itoa(run.ItemsFetched + run.ItemsRedone),
					strconv.Itoa(run.ItemsFailed),
					strconv.Itoa(run.ItemsSummed),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Duration", "Channels", "Fetched", "Failed", "Summarized"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show per-channel outcomes for one run id")
	return cmd
}
