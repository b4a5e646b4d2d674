package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"order-guard-go/internal/container"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "启动守卫服务（规则热更新、/metrics）",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts.configPath)
		},
	}
}

func run(ctx context.Context, configPath string) error {
	c, err := container.New(configPath)
	if err != nil {
		return err
	}
	if err := c.Build(); err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		c.Stop()
		return err
	}

	log := c.Logger()
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify_failed", zap.Error(err))
	} else if ok {
		log.Info("sd_notify_ready")
	}

	<-ctx.Done()
	log.Info("shutdown_signal")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err := c.Stop(); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}
