// Package notify forwards outreach lifecycle events to an operator webhook.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"outreach_backend/platform/events"
	"outreach_backend/platform/logger"
)

const defaultHTTPTimeout = 10 * time.Second

// WebhookNotifier POSTs subscribed events as JSON to one endpoint. Delivery
// is fire-and-forget; a failed delivery is logged, never retried, and never
// blocks the pipeline.
type WebhookNotifier struct {
	httpClient *http.Client
	url        string
	secret     string
	log        *logger.Logger
}

func NewWebhookNotifier(url, secret string, log *logger.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		url:        url,
		secret:     secret,
		log:        log,
	}
}

// Register subscribes the notifier to the events operators care about.
// A notifier without a URL registers nothing.
func (n *WebhookNotifier) Register(bus events.Bus) {
	if n.url == "" {
		return
	}
	handler := events.HandlerFunc(n.deliver)
	bus.Subscribe(events.LeadReplied{}.EventName(), handler)
	bus.Subscribe(events.LeadDeadLettered{}.EventName(), handler)
	bus.Subscribe(events.EmailSent{}.EventName(), handler)
	bus.Subscribe(events.LeadsImported{}.EventName(), handler)
}

type envelope struct {
	Event      string       `json:"event"`
	OccurredAt time.Time    `json:"occurred_at"`
	Payload    events.Event `json:"payload"`
}

func (n *WebhookNotifier) deliver(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(envelope{
		Event:      event.EventName(),
		OccurredAt: event.OccurredAt(),
		Payload:    event,
	})
	if err != nil {
		return fmt.Errorf("webhook marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set("X-Signature", sign(n.secret, body))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.log.Warn("webhook delivery failed", "event", event.EventName(), "error", err.Error())
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.Warn("webhook delivery rejected", "event", event.EventName(), "status", resp.StatusCode)
	}
	return nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
