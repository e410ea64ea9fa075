package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError is returned when a backend answers with a non-2xx status.
type StatusError struct {
	Backend    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http status %d %s", e.Backend, e.StatusCode, http.StatusText(e.StatusCode))
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func sendJSON(ctx context.Context, client *http.Client, backend, method, url string, headers map[string]string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", backend, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", backend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return do(client, backend, req)
}

func do(client *http.Client, backend string, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", backend, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Backend: backend, StatusCode: resp.StatusCode}
	}
	return nil
}
