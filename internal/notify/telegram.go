package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"points-miner/internal/config"
)

type Telegram struct {
	bot    *telego.Bot
	chatID int64
	silent bool
}

func NewTelegram(cfg config.TelegramConfig, opts ...telego.BotOption) (*Telegram, error) {
	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: cfg.ChatID, silent: cfg.DisableNotification}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, _ Event, message string) error {
	_, err := t.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:              tu.ID(t.chatID),
		Text:                message,
		DisableNotification: t.silent,
	})
	return err
}
