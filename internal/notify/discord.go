package notify

import (
	"context"
	"fmt"
)

// DiscordSender delivers alerts to a Discord webhook.
type DiscordSender struct {
	webhookURL string
}

// NewDiscordSender creates a DiscordSender.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL}
}

// Send posts the alert. Discord answers 204 on success.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	return postJSON(ctx, defaultClient, d.Name(), d.webhookURL,
		map[string]string{"content": fmt.Sprintf("**%s**\n%s", title, message)})
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string { return "discord" }
