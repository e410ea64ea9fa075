// Package gateway talks to the platform-gateway sidecar that owns the
// streaming platform session. It implements engine.Platform over JSON/HTTP.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"points-miner/internal/config"
	"points-miner/internal/types"
)

// StatusError is a non-2xx gateway response. 5xx and 429 are worth retrying,
// other 4xx are not.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("gateway %s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *StatusError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && !e.RateLimited() && e.StatusCode != http.StatusRequestTimeout
}

func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

type Client struct {
	HTTP    *http.Client
	baseURL string
	token   string
}

func New(cfg config.GatewayConfig) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: cfg.Timeout.Std()},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
	}
}

type heartbeatRequest struct {
	ChannelID string    `json:"channel_id,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

type betRequest struct {
	ChannelID string `json:"channel_id,omitempty"`
	Streamer  string `json:"streamer"`
	OutcomeID string `json:"outcome_id"`
	Amount    int    `json:"amount"`
}

type claimRequest struct {
	Streamer  string `json:"streamer"`
	ChannelID string `json:"channel_id,omitempty"`
}

type chatRequest struct {
	Joined bool `json:"joined"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) SendWatchHeartbeat(ctx context.Context, s types.Streamer) error {
	path := "/streamers/" + url.PathEscape(s.Username) + "/heartbeat"
	return c.do(ctx, http.MethodPost, path, heartbeatRequest{ChannelID: s.ChannelID, SentAt: time.Now().UTC()}, nil)
}

func (c *Client) PlaceBet(ctx context.Context, w types.PredictionWindow, o types.Outcome, amount int) (types.BetReceipt, error) {
	var receipt types.BetReceipt
	path := "/predictions/" + url.PathEscape(w.ID) + "/bets"
	err := c.do(ctx, http.MethodPost, path, betRequest{
		ChannelID: w.ChannelID,
		Streamer:  w.Streamer,
		OutcomeID: o.ID,
		Amount:    amount,
	}, &receipt)
	return receipt, err
}

func (c *Client) ClaimDrop(ctx context.Context, s types.Streamer, dropID string) error {
	path := "/drops/" + url.PathEscape(dropID) + "/claim"
	return c.do(ctx, http.MethodPost, path, claimRequest{Streamer: s.Username, ChannelID: s.ChannelID}, nil)
}

func (c *Client) JoinRaid(ctx context.Context, s types.Streamer, raidID string) error {
	path := "/raids/" + url.PathEscape(raidID) + "/join"
	return c.do(ctx, http.MethodPost, path, claimRequest{Streamer: s.Username, ChannelID: s.ChannelID}, nil)
}

func (c *Client) ClaimMoment(ctx context.Context, s types.Streamer, momentID string) error {
	path := "/moments/" + url.PathEscape(momentID) + "/claim"
	return c.do(ctx, http.MethodPost, path, claimRequest{Streamer: s.Username, ChannelID: s.ChannelID}, nil)
}

func (c *Client) SetChatPresence(ctx context.Context, s types.Streamer, joined bool) error {
	path := "/streamers/" + url.PathEscape(s.Username) + "/chat"
	return c.do(ctx, http.MethodPut, path, chatRequest{Joined: joined}, nil)
}

func (c *Client) Followers(ctx context.Context) ([]types.Follower, error) {
	var followers []types.Follower
	err := c.do(ctx, http.MethodGet, "/followers", nil, &followers)
	return followers, err
}

// ClaimableDrops lists inventory drops that can be claimed right now.
func (c *Client) ClaimableDrops(ctx context.Context) ([]types.InventoryDrop, error) {
	var drops []types.InventoryDrop
	err := c.do(ctx, http.MethodGet, "/drops/claimable", nil, &drops)
	return drops, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var er errorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&er); err == nil {
			se.Message = er.Error
		}
		return se
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
