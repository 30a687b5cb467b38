// Package adbackend calls the external ad-serving backend.
package adbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client issues best-effort calls to the ad backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates an ad backend client. An empty baseURL disables all
// outbound calls.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// StopServing asks the ad backend to stop serving a room. It is fire and
// forget: failures are logged and swallowed so an idle notification can
// never fail the webhook that triggered it.
func (c *Client) StopServing(roomID string) {
	if c.baseURL == "" {
		c.logger.Debug("ad backend not configured, skipping stop call", zap.String("room_id", roomID))
		return
	}
	body, _ := json.Marshal(map[string]string{"roomId": roomID})
	ctx, cancel := context.WithTimeout(context.Background(), c.http.Timeout)
	defer cancel()
	url := fmt.Sprintf("%s/rooms/%s/stop", c.baseURL, roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("ad backend stop request build failed", zap.Error(err), zap.String("room_id", roomID))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("ad backend stop call failed", zap.Error(err), zap.String("room_id", roomID))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		c.logger.Warn("ad backend stop call rejected", zap.Int("status", resp.StatusCode), zap.String("room_id", roomID))
		return
	}
	c.logger.Info("asked ad backend to stop serving room", zap.String("room_id", roomID))
}
