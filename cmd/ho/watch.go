package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/handoff/internal/notify"
)

func newWatchCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the failed-post digest loop",
		Long: `Scans for escalations stuck in post_failed on the configured cron schedule
and reports them to the configured webhooks. Never retries automatically.
Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	return cmd
}

func runWatch(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	notifiers := buildNotifiers(cfg)
	if len(notifiers) == 0 {
		return fmt.Errorf("no webhooks configured — set notify.slack_webhook_url or notify.discord_webhook_id")
	}

	scheduler, err := notify.NewScheduler(gormDB, cfg.Digest.Schedule, notifiers)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching for failed posts (schedule: %s)\n", cfg.Digest.Schedule)
	scheduler.Run(ctx)
	return nil
}
