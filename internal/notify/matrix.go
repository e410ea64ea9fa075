package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"points-miner/internal/config"
)

// Matrix sends m.text messages to one room through the client-server API.
type Matrix struct {
	HTTP        *http.Client
	homeserver  string
	accessToken string
	roomID      string
}

type matrixMessage struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

func NewMatrix(cfg config.MatrixConfig) *Matrix {
	hs := strings.TrimSuffix(cfg.Homeserver, "/")
	if !strings.Contains(hs, "://") {
		hs = "https://" + hs
	}
	return &Matrix{
		HTTP:        defaultClient(),
		homeserver:  hs,
		accessToken: cfg.AccessToken,
		roomID:      cfg.RoomID,
	}
}

func (m *Matrix) Name() string { return "matrix" }

// Send uses the event ID as transaction ID so a resend is deduplicated by the homeserver.
func (m *Matrix) Send(ctx context.Context, ev Event, message string) error {
	endpoint := fmt.Sprintf("%s/_matrix/client/v3/rooms/%s/send/m.room.message/%s",
		m.homeserver, url.PathEscape(m.roomID), url.PathEscape(ev.Meta().ID))
	headers := map[string]string{"Authorization": "Bearer " + m.accessToken}
	return sendJSON(ctx, m.HTTP, m.Name(), http.MethodPut, endpoint, headers, matrixMessage{
		MsgType: "m.text",
		Body:    message,
	})
}
