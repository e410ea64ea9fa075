package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"points-miner/internal/config"
)

const pushoverEndpoint = "https://api.pushover.net/1/messages.json"

type Pushover struct {
	HTTP     *http.Client
	Endpoint string
	cfg      config.PushoverConfig
}

func NewPushover(cfg config.PushoverConfig) *Pushover {
	return &Pushover{HTTP: defaultClient(), Endpoint: pushoverEndpoint, cfg: cfg}
}

func (p *Pushover) Name() string { return "pushover" }

func (p *Pushover) Send(ctx context.Context, ev Event, message string) error {
	form := url.Values{}
	form.Set("token", p.cfg.Token)
	form.Set("user", p.cfg.UserKey)
	form.Set("message", message)
	form.Set("title", ev.Meta().Username)
	form.Set("priority", strconv.Itoa(p.cfg.Priority))
	if p.cfg.Sound != "" {
		form.Set("sound", p.cfg.Sound)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", p.Name(), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(p.HTTP, p.Name(), req)
}
