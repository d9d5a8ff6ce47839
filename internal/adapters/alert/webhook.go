// Package alert delivers best-effort failure notifications to a chat
// webhook. Delivery failures are logged and swallowed: an alert that
// cannot be sent must never mask the failure it reports.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/campuspulse/engage/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// Notifier sends an operator-facing alert message.
type Notifier interface {
	Notify(ctx context.Context, reason, detail string)
}

// Webhook posts {"text": ...} JSON to a configured chat webhook URL.
type Webhook struct {
	url        string
	httpClient *http.Client
	logger     logger.Logger
}

// Option applies a configuration option to the Webhook.
type Option func(*Webhook)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(w *Webhook) {
		if hc != nil {
			w.httpClient = hc
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Webhook) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWebhook creates a webhook notifier. An empty URL produces a notifier
// that only logs, which keeps call sites unconditional.
func NewWebhook(url string, opts ...Option) *Webhook {
	w := &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("alert")
	}
	return w
}

type message struct {
	Text string `json:"text"`
}

// Notify posts the alert. Errors are logged, never returned.
func (w *Webhook) Notify(ctx context.Context, reason, detail string) {
	text := fmt.Sprintf("ALERT: %s\n\nTime: %s\nDetail: %s",
		reason, time.Now().Format("2006-01-02 15:04:05"), detail)
	w.logger.Warn(ctx, "operator alert", logger.String("reason", reason), logger.String("detail", detail))

	if w.url == "" {
		return
	}
	body, err := json.Marshal(message{Text: text})
	if err != nil {
		w.logger.Error(ctx, "alert encode failed", logger.Error(err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.logger.Error(ctx, "alert request build failed", logger.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Error(ctx, "alert delivery failed", logger.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		w.logger.Error(ctx, "alert delivery rejected", logger.Int("status", resp.StatusCode))
	}
}
