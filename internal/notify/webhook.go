package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-data-pipeline/internal/logger"
	"go-data-pipeline/internal/model"
)

// Webhook POSTs notifications as JSON to a fixed URL.
type Webhook struct {
	url    string
	client *http.Client
	retry  model.RetryConfig
	log    *logger.Logger
}

// NewWebhook creates a webhook notifier. A nil client gets a 10s timeout.
func NewWebhook(url string, retry model.RetryConfig, client *http.Client, log *logger.Logger) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Webhook{url: url, client: client, retry: retry, log: log.WithComponent("notify.webhook")}
}

func (w *Webhook) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	err = retry(ctx, w.retry, func(ctx context.Context) error {
		return w.post(ctx, body)
	})
	if err != nil {
		w.log.Warn("Webhook delivery failed", logger.ErrorFields(err, logger.FieldPipeline, n.Pipeline, "url", w.url))
		return err
	}
	w.log.Debug("Webhook delivered", logger.Fields(logger.FieldPipeline, n.Pipeline, "status", n.Status))
	return nil
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}
