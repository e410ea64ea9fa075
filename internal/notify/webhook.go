package notify

import (
	"context"
	"net/http"
	"time"

	"points-miner/internal/config"
)

// Webhook posts every notification as JSON to a generic endpoint.
type Webhook struct {
	HTTP     *http.Client
	endpoint string
}

type webhookPayload struct {
	ID       string    `json:"id"`
	Event    string    `json:"event"`
	Streamer string    `json:"streamer"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

func NewWebhook(cfg config.WebhookConfig) *Webhook {
	return &Webhook{HTTP: defaultClient(), endpoint: cfg.Endpoint}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, ev Event, message string) error {
	h := ev.Meta()
	return sendJSON(ctx, w.HTTP, w.Name(), http.MethodPost, w.endpoint, nil, webhookPayload{
		ID:       h.ID,
		Event:    string(ev.Tag()),
		Streamer: h.Username,
		Message:  message,
		At:       h.At,
	})
}
