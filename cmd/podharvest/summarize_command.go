package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"podharvest/internal/ledger"
)

func newSummarizeCommand(ctx *commandContext) *cobra.Command {
	var itemID string

	cmd := &cobra.Command{
		Use:   "summarize <channel>",
		Short: "Summarize downloaded transcripts for a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			channel, ok := cfg.ChannelByName(args[0])
			if !ok {
				return fmt.Errorf("unknown channel %q", args[0])
			}
			dir := cfg.ChannelDir(channel.Name)
			led, err := ledger.Load(dir)
			if err != nil {
				return fmt.Errorf("load ledger: %w", err)
			}

			pipeline := newSummarizePipeline(cfg, logger)
			out := cmd.OutOrStdout()
			processed := 0
			for id, entry := range led.Entries {
				if entry.Deleted {
					continue
				}
				if itemID != "" && id != itemID {
					continue
				}
				subtitle := entry.Manifest.SubtitleForLanguage(channel.TranscriptLanguage)
				if subtitle == "" && len(entry.Manifest.Subtitles) > 0 {
					subtitle = entry.Manifest.Subtitles[0]
				}
				subtitlePath := ""
				if subtitle != "" {
					subtitlePath = filepath.Join(dir, subtitle)
				}

				result, err := pipeline.Run(cmd.Context(), filepath.Join(dir, id), subtitlePath, channel.TranscriptLanguage)
				if err != nil {
					return fmt.Errorf("summarize %s: %w", id, err)
				}
				processed++
				switch {
				case result.Skipped:
					fmt.Fprintf(out, "%s: already summarized\n", id)
				case result.Final.Complete:
					fmt.Fprintf(out, "%s: summarized %d/%d chunks\n", id, result.Final.ChunksSucceeded, result.Final.ChunksTotal)
				default:
					fmt.Fprintf(out, "%s: failed (%s)\n", id, result.Final.FailureReason)
				}
			}
			if processed == 0 {
				if itemID != "" {
					return fmt.Errorf("no active ledger entry for item %q", itemID)
				}
				fmt.Fprintln(out, "Nothing to summarize")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&itemID, "item", "", "Only summarize the given item id")
	return cmd
}
