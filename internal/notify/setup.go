package notify

import (
	"fmt"

	"go.uber.org/zap"

	"points-miner/internal/config"
)

// FromConfig builds a dispatcher with every enabled backend registered.
func FromConfig(logger *zap.Logger, renderer Renderer, cfg config.NotificationsConfig) (*Dispatcher, error) {
	d := NewDispatcher(logger, renderer, Options{
		QueueSize:     cfg.QueueSize,
		SendTimeout:   cfg.SendTimeout.Std(),
		RatePerSecond: cfg.RatePerSecond,
	})

	if cfg.Telegram.Enabled {
		t, err := NewTelegram(cfg.Telegram)
		if err != nil {
			return nil, err
		}
		d.Register(t, ParseTags(cfg.Telegram.Events))
	}
	if cfg.Discord.Enabled {
		dc, err := NewDiscord(cfg.Discord)
		if err != nil {
			return nil, fmt.Errorf("discord: %w", err)
		}
		d.Register(dc, ParseTags(cfg.Discord.Events))
	}
	if cfg.Slack.Enabled {
		d.Register(NewSlack(cfg.Slack), ParseTags(cfg.Slack.Events))
	}
	if cfg.Matrix.Enabled {
		d.Register(NewMatrix(cfg.Matrix), ParseTags(cfg.Matrix.Events))
	}
	if cfg.Pushover.Enabled {
		d.Register(NewPushover(cfg.Pushover), ParseTags(cfg.Pushover.Events))
	}
	if cfg.Webhook.Enabled {
		d.Register(NewWebhook(cfg.Webhook), ParseTags(cfg.Webhook.Events))
	}
	return d, nil
}
