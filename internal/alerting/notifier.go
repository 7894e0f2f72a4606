// Package alerting delivers structured threat alerts to notification
// channels.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinel-engine/internal/logging"
)

// Alert is a structured notification addressed to a role group.
type Alert struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	Message     string         `json:"message"`
	Data        map[string]any `json:"data,omitempty"`
	TargetRoles []string       `json:"target_roles"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Channel delivers alerts over one transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert *Alert) error
}

// Notifier fans alerts out to all registered channels. Channel failures
// are isolated: one channel failing never stops delivery on the others.
type Notifier struct {
	mu       sync.RWMutex
	channels []Channel
}

// NewNotifier creates a notifier with the given channels.
func NewNotifier(channels ...Channel) *Notifier {
	return &Notifier{channels: channels}
}

// AddChannel registers a notification channel.
func (n *Notifier) AddChannel(channel Channel) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, channel)
	slog.Info("added notification channel", "name", channel.Name())
}

// SendAlert builds an alert and delivers it on every channel. Alert data
// crosses the trust boundary, so sensitive fields are redacted first.
// Returns an error only when every channel failed.
func (n *Notifier) SendAlert(ctx context.Context, alertType, severity, message string, data map[string]any, targetRoles []string) error {
	alert := &Alert{
		ID:          uuid.New(),
		Type:        alertType,
		Severity:    severity,
		Message:     message,
		Data:        logging.MaskFields(data),
		TargetRoles: targetRoles,
		Timestamp:   time.Now().UTC(),
	}

	n.mu.RLock()
	channels := make([]Channel, len(n.channels))
	copy(channels, n.channels)
	n.mu.RUnlock()

	if len(channels) == 0 {
		return errors.New("alerting: no channels registered")
	}

	var errs []error
	for _, channel := range channels {
		if err := channel.Send(ctx, alert); err != nil {
			slog.Error("channel delivery failed",
				"channel", channel.Name(),
				"alert_id", alert.ID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", channel.Name(), err))
		}
	}

	if len(errs) == len(channels) {
		return fmt.Errorf("alerting: all channels failed: %w", errors.Join(errs...))
	}
	return nil
}
