package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"order-guard-go/config"
	"order-guard-go/history"
	"order-guard-go/internal/container"
	"order-guard-go/tracker"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect SYMBOL",
		Short: "打印交易对已落盘的订单历史",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithEnvOverrides(opts.configPath)
			if err != nil {
				return err
			}
			store, err := container.OpenStore(cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			symbol := args[0]
			data, ok, err := store.Load(symbol)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintf(out, "%s: no snapshot\n", symbol)
				return nil
			}
			hist, err := history.Restore[tracker.Record](data, cfg.Storage.Capacity)
			if err != nil {
				return fmt.Errorf("%s: %w", symbol, err)
			}

			entries := hist.All()
			fmt.Fprintf(out, "%s: %d entries (capacity %d)\n", symbol, len(entries), hist.Capacity())
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%s\n", e.Timestamp, e.Item.Side, e.Item.Size, e.Item.Price, e.Item.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "只显示最新 N 条，0 表示全部")
	return cmd
}
