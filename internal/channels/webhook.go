package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"monitoring-service/internal/config"
	"monitoring-service/internal/models"
)

// WebhookChannel posts alerts to a Slack-compatible incoming webhook.
type WebhookChannel struct {
	cfg    config.Config
	client *http.Client
}

func NewWebhookChannel(cfg config.Config) *WebhookChannel {
	return &WebhookChannel{cfg: cfg, client: &http.Client{}}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Configured() bool {
	return c.cfg.Channels.Webhook.Enabled && c.cfg.Channels.Webhook.URL != ""
}

func (c *WebhookChannel) Deliver(ctx context.Context, n models.Notification) error {
	payload := map[string]string{
		"text": fmt.Sprintf("*%s*\n%s", n.Subject, n.Body),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Channels.Webhook.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
