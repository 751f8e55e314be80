package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"podharvest/internal/catalog"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	var channels []string
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Refresh channel catalogs without fetching media",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			fetcher, err := newFetchClient(cfg)
			if err != nil {
				return fmt.Errorf("build fetch client: %w", err)
			}
			builder := catalog.NewBuilder(fetcher, logger)

			selected := cfg.Channels
			if len(channels) > 0 {
				selected = selected[:0:0]
				for _, name := range channels {
					ch, ok := cfg.ChannelByName(name)
					if !ok {
						return fmt.Errorf("unknown channel %q", name)
					}
					selected = append(selected, ch)
				}
			}

			rows := make([][]string, 0, len(selected))
			for _, ch := range selected {
				dir := cfg.ChannelDir(ch.Name)
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create channel directory: %w", err)
				}
				var cat *catalog.Catalog
				if force {
					cat, err = builder.Rebuild(cmd.Context(), ch, dir)
				} else {
					cat, err = builder.LoadOrRebuild(cmd.Context(), ch, dir)
				}
				if err != nil {
					rows = append(rows, []string{ch.Name, "-", "-", err.Error()})
					continue
				}
				if err := catalog.Save(dir, cat); err != nil {
					return fmt.Errorf("persist catalog for %s: %w", ch.Name, err)
				}
				added := "0"
				if n := len(cat.IndexHistory); n > 0 {
					added = strconv.Itoa(cat.IndexHistory[n-1].ItemsAdded)
				}
				rows = append(rows, []string{ch.Name, strconv.Itoa(cat.TotalItems), added, "ok"})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Channel", "Items", "Added", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&channels, "channels", nil, "Only index the named channels (comma separated)")
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild catalogs from scratch, ignoring persisted ones")
	return cmd
}
