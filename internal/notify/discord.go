package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Discord embed sidebar colors.
const (
	discordColorInfo    = 0x36a64f // green
	discordColorWarning = 0xffcc00 // yellow
	discordColorError   = 0xd00000 // red
)

// webhookExecutor abstracts the discordgo session method we use, enabling
// test mocks.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts events to a Discord webhook.
type DiscordNotifier struct {
	webhookID string
	token     string
	sess      webhookExecutor
}

// NewDiscord creates a DiscordNotifier. Webhook execution needs no bot
// token, so the underlying session is unauthenticated.
func NewDiscord(webhookID, token string) (*DiscordNotifier, error) {
	if webhookID == "" || token == "" {
		return nil, fmt.Errorf("notify: discord webhook id and token are required")
	}
	sess, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("notify: discord session: %w", err)
	}
	return &DiscordNotifier{webhookID: webhookID, token: token, sess: sess}, nil
}

// NewDiscordWithSession creates a DiscordNotifier with an injected session
// for tests.
func NewDiscordWithSession(webhookID, token string, sess webhookExecutor) *DiscordNotifier {
	return &DiscordNotifier{webhookID: webhookID, token: token, sess: sess}
}

func (n *DiscordNotifier) Name() string { return "discord" }

// Send delivers the event as a single embed.
func (n *DiscordNotifier) Send(ctx context.Context, evt Event) error {
	embed := &discordgo.MessageEmbed{
		Title:       evt.Title,
		Description: evt.Body,
		Color:       discordColor(evt.Severity),
	}
	for _, f := range evt.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}

	params := &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	}
	if _, err := n.sess.WebhookExecute(n.webhookID, n.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("notify: discord webhook: %w", err)
	}
	return nil
}

// discordColor maps a severity to an embed color.
func discordColor(sev Severity) int {
	switch sev {
	case SeverityError:
		return discordColorError
	case SeverityWarning:
		return discordColorWarning
	default:
		return discordColorInfo
	}
}
