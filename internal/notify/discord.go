package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"

	"points-miner/internal/config"
)

// Discord executes a channel webhook. The configured URL has the form
// https://discord.com/api/webhooks/{id}/{token}.
type Discord struct {
	session *discordgo.Session
	id      string
	token   string
}

func NewDiscord(cfg config.DiscordConfig) (*Discord, error) {
	id, token, err := parseDiscordWebhook(cfg.WebhookAPI)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &Discord{session: session, id: id, token: token}, nil
}

func parseDiscordWebhook(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord webhook url %q has no webhooks/{id}/{token} segment", raw)
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, _ Event, message string) error {
	_, err := d.session.WebhookExecute(d.id, d.token, false, &discordgo.WebhookParams{
		Content:  message,
		Username: "Points Miner",
	}, discordgo.WithContext(ctx))
	return err
}
