package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// webhookPoster matches slack.PostWebhookContext, enabling test mocks.
type webhookPoster func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// SlackNotifier posts events to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	post       webhookPoster
}

// NewSlack creates a SlackNotifier for an incoming webhook URL.
func NewSlack(webhookURL string) (*SlackNotifier, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("notify: slack webhook url is required")
	}
	return &SlackNotifier{webhookURL: webhookURL, post: slackapi.PostWebhookContext}, nil
}

func (n *SlackNotifier) Name() string { return "slack" }

// Send delivers the event as a single color-coded attachment.
func (n *SlackNotifier) Send(ctx context.Context, evt Event) error {
	att := slackapi.Attachment{
		Title:    evt.Title,
		Text:     evt.Body,
		Color:    slackColor(evt.Severity),
		Fallback: evt.Title,
	}
	for _, f := range evt.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}

	msg := &slackapi.WebhookMessage{
		Attachments: []slackapi.Attachment{att},
	}
	if err := n.post(ctx, n.webhookURL, msg); err != nil {
		return fmt.Errorf("notify: slack webhook: %w", err)
	}
	return nil
}

// slackColor maps a severity to a Slack attachment color.
func slackColor(sev Severity) string {
	switch sev {
	case SeverityError:
		return "danger"
	case SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}
