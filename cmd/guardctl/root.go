package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "guardctl",
		Short:         "下单守卫：记录订单历史并按交易对规则校验",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			// .env 不存在时忽略，环境变量仍然生效
			if opts.envFile != "" {
				_ = godotenv.Load(opts.envFile)
			} else {
				_ = godotenv.Load()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "configs/guard.yaml", "配置文件路径")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", ".env 文件路径（默认当前目录）")

	cmd.AddCommand(
		newRunCmd(opts),
		newCheckCmd(opts),
		newInspectCmd(opts),
	)
	return cmd
}
