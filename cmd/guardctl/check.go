package main

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/spf13/cobra"

	"order-guard-go/config"
	"order-guard-go/rules"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "加载配置与规则文件，逐个交易对做结构校验",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithEnvOverrides(opts.configPath)
			if err != nil {
				return err
			}
			reg, failures, err := loadRegistry(cfg)
			if err != nil {
				return err
			}

			syms := reg.Symbols()
			for sym := range failures {
				if !slices.Contains(syms, sym) {
					syms = append(syms, sym)
				}
			}
			sort.Strings(syms)

			out := cmd.OutOrStdout()
			var failed []error
			for _, sym := range syms {
				err, ok := failures[sym]
				if !ok {
					err = reg.Check(sym)
				}
				if err != nil {
					failed = append(failed, err)
					fmt.Fprintf(out, "FAIL %s: %v\n", sym, err)
					continue
				}
				set, _ := reg.Rules(sym)
				fmt.Fprintf(out, "OK   %s (%d rules)\n", sym, len(set))
				for _, r := range set {
					fmt.Fprintf(out, "     %s\n", r)
				}
			}
			return errors.Join(failed...)
		},
	}
}

// loadRegistry 只做规则装载，不打开存储。单个交易对的失败记在 failures 里，
// 只有规则文件本身读不了才返回 error。
func loadRegistry(cfg config.AppConfig) (*rules.Registry, map[string]error, error) {
	reg := rules.NewRegistry(nil)
	failures := make(map[string]error)
	for sym, sc := range cfg.Symbols {
		global, err := sc.GlobalRules()
		if err == nil {
			err = reg.SeedGlobal(sym, global)
		}
		if err != nil {
			failures[sym] = fmt.Errorf("symbol %s: %w", sym, err)
		}
	}
	if cfg.RulesFile == "" {
		return reg, failures, nil
	}
	dynamic, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, nil, err
	}
	for _, res := range reg.ApplyDynamic(dynamic) {
		if _, seen := failures[res.Symbol]; res.Err != nil && !seen {
			failures[res.Symbol] = res.Err
		}
	}
	return reg, failures, nil
}
