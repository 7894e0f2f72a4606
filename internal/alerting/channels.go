package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Publisher publishes a payload on a pub/sub channel. Satisfied by the
// cache client, which backs the default alert delivery path.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PubSubChannel publishes alerts to a Redis pub/sub channel that
// dashboard and responder processes subscribe to.
type PubSubChannel struct {
	publisher Publisher
	channel   string
}

// NewPubSubChannel creates a pub/sub notification channel.
func NewPubSubChannel(publisher Publisher, channel string) *PubSubChannel {
	if channel == "" {
		channel = "alerts:security"
	}
	return &PubSubChannel{publisher: publisher, channel: channel}
}

// Name returns the channel name.
func (p *PubSubChannel) Name() string {
	return "pubsub:" + p.channel
}

// Send publishes the alert as JSON.
func (p *PubSubChannel) Send(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	return p.publisher.Publish(ctx, p.channel, payload)
}

// WebhookChannel sends alerts via HTTP webhook.
type WebhookChannel struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookChannel creates a new webhook channel.
func NewWebhookChannel(name, url string, headers map[string]string) *WebhookChannel {
	return &WebhookChannel{
		name:    name,
		url:     url,
		headers: headers,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the channel name.
func (w *WebhookChannel) Name() string {
	return w.name
}

// Send posts the alert as JSON.
func (w *WebhookChannel) Send(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// LogChannel writes alerts to the structured log. Useful as a fallback
// when no external channel is configured.
type LogChannel struct{}

// Name returns the channel name.
func (l *LogChannel) Name() string {
	return "log"
}

// Send logs the alert.
func (l *LogChannel) Send(ctx context.Context, alert *Alert) error {
	slog.Warn("security alert",
		"alert_id", alert.ID,
		"type", alert.Type,
		"severity", alert.Severity,
		"message", alert.Message,
		"target_roles", alert.TargetRoles,
	)
	return nil
}
