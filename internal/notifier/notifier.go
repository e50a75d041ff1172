// Package notifier is the outbound message boundary: the core hands over a
// target and a structured message and never learns how delivery happens.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notifier delivers a message to a client or staff target. The return value
// reports whether delivery (or hand-off) succeeded; failures are for the
// caller to audit, never to propagate.
type Notifier interface {
	Notify(ctx context.Context, targetID, message string) bool
}

// Noop discards all notifications.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, string, string) bool { return true }

// LogNotifier writes notifications to the log, used in development.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, targetID, message string) bool {
	if n.Logger != nil {
		n.Logger.Info("notification", zap.String("target_id", targetID), zap.String("message", message))
	}
	return true
}

// WebhookNotifier posts notifications as JSON to a delivery gateway.
type WebhookNotifier struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
	Logger  *zap.Logger
}

// NewWebhookNotifier constructs a webhook notifier.
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookNotifier{
		URL:     url,
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, targetID, message string) bool {
	payload, err := json.Marshal(map[string]string{
		"target_id": targetID,
		"message":   message,
	})
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, n.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		n.Logger.Warn("notification delivery failed", zap.String("target_id", targetID), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.Logger.Warn("notification gateway rejected message", zap.String("target_id", targetID), zap.Int("status", resp.StatusCode))
		return false
	}
	return true
}
