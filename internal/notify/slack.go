package notify

import (
	"context"

	"github.com/slack-go/slack"

	"points-miner/internal/config"
)

// Slack posts to an incoming webhook.
type Slack struct {
	webhookURL string
}

func NewSlack(cfg config.SlackConfig) *Slack {
	return &Slack{webhookURL: cfg.WebhookURL}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, _ Event, message string) error {
	return slack.PostWebhookContext(ctx, s.webhookURL, &slack.WebhookMessage{Text: message})
}
