package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"
	"github.com/zulandar/handoff/internal/config"
	"github.com/zulandar/handoff/internal/credentials"
	"github.com/zulandar/handoff/internal/escalation"
	"github.com/zulandar/handoff/internal/notify"
	"github.com/zulandar/handoff/internal/pipeline"
	"gorm.io/gorm"
)

func newPostCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "post <id> [file...]",
		Short: "Post an escalation to the ticket system",
		Long: `Renders the escalation to markdown, posts it as a comment on the ticket,
then uploads each file as an attachment in order. Every step is recorded
in the audit trail.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(cmd, configPath, args[0], args[1:], false)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	return cmd
}

func newRetryCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "retry <id> [file...]",
		Short: "Retry a failed posting run",
		Long: `Re-runs the posting pipeline for an escalation in post_failed. Steps the
audit trail records as already succeeded are skipped, so the comment is
never posted twice and sent attachments are not re-sent.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(cmd, configPath, args[0], args[1:], true)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	return cmd
}

func runPost(cmd *cobra.Command, configPath, arg string, files []string, isRetry bool) error {
	id, err := parseEscalationID(arg)
	if err != nil {
		return err
	}

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	settings, err := loadRemoteSettings(gormDB, cfg)
	if err != nil {
		return err
	}
	client, err := buildRemoteClient(settings, credentials.Keyring{})
	if err != nil {
		return err
	}

	coord, err := pipeline.New(pipeline.Opts{DB: gormDB, Publisher: client})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var result *pipeline.PostResult
	if isRetry {
		result, err = coord.Retry(ctx, id, files)
	} else {
		result, err = coord.Post(ctx, id, files)
	}
	if err != nil {
		return err
	}

	printResult(cmd.OutOrStdout(), result)
	notifyOutcome(ctx, gormDB, cfg, result)

	return nil
}

// printResult reports the comment, each attachment, and the final status.
func printResult(out io.Writer, result *pipeline.PostResult) {
	switch result.Comment.State {
	case pipeline.OutcomeSuccess:
		fmt.Fprintf(out, "Comment posted (remote id %s)\n", result.Comment.RemoteID)
	case pipeline.OutcomeSkipped:
		fmt.Fprintln(out, "Comment already posted, skipped")
	case pipeline.OutcomeFailure:
		fmt.Fprintf(out, "Comment failed: %s: %s\n", result.Comment.Kind, result.Comment.Message)
	}

	for _, a := range result.Attachments {
		switch a.State {
		case pipeline.OutcomeSuccess:
			fmt.Fprintf(out, "Attached %s\n", a.File)
		case pipeline.OutcomeSkipped:
			fmt.Fprintf(out, "Skipped %s (already attached)\n", a.File)
		case pipeline.OutcomeFailure:
			fmt.Fprintf(out, "Failed %s: %s: %s\n", a.File, a.Kind, a.Message)
		}
	}

	fmt.Fprintf(out, "\nEscalation %d is now %s\n", result.EscalationID, result.FinalStatus)
}

// notifyOutcome fans the result out to configured webhooks. Best-effort.
func notifyOutcome(ctx context.Context, gormDB *gorm.DB, cfg *config.Config, result *pipeline.PostResult) {
	notifiers := buildNotifiers(cfg)
	if len(notifiers) == 0 {
		return
	}

	esc, err := escalation.Get(gormDB, result.EscalationID)
	if err != nil {
		log.Printf("notify: %v", err)
		return
	}
	notify.Fanout(ctx, notifiers, notify.OutcomeEvent(esc, result))
}

// buildNotifiers creates one notifier per configured webhook.
func buildNotifiers(cfg *config.Config) []notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Notify.SlackWebhookURL != "" {
		if n, err := notify.NewSlack(cfg.Notify.SlackWebhookURL); err == nil {
			notifiers = append(notifiers, n)
		}
	}
	if cfg.Notify.DiscordWebhookID != "" {
		if n, err := notify.NewDiscord(cfg.Notify.DiscordWebhookID, cfg.Notify.DiscordToken); err == nil {
			notifiers = append(notifiers, n)
		}
	}
	return notifiers
}
