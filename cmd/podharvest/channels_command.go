package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"podharvest/internal/catalog"
	"podharvest/internal/ledger"
	"podharvest/internal/services"
)

func newChannelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "Show configured channels and their on-disk state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(cfg.Channels))
			for _, ch := range cfg.Channels {
				dir := cfg.ChannelDir(ch.Name)

				cataloged := "-"
				switch cat, err := catalog.Load(dir); {
				case err == nil:
					cataloged = strconv.Itoa(cat.TotalItems)
				case services.IsCorrupted(err):
					cataloged = "corrupt"
				}

				fetched := "-"
				bytes := "-"
				switch led, err := ledger.Load(dir); {
				case err == nil:
					fetched = strconv.Itoa(led.Stats.ActiveEntries)
					bytes = formatBytes(led.Stats.TotalBytes)
				case services.IsCorrupted(err):
					fetched = "corrupt"
				}

				summarize := "no"
				if ch.Summarize {
					summarize = "yes"
				}
				rows = append(rows, []string{
					ch.Name, ch.ContentType, ch.CutoffDate, cataloged, fetched, bytes, summarize,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Channel", "Type", "Cutoff", "Cataloged", "Fetched", "Size", "Summarize"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
