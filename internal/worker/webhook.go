package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"quillpost/internal/models"
)

// WebhookDeliverer POSTs each published article as JSON to a fixed URL. An
// empty URL turns delivery into a logged no-op.
type WebhookDeliverer struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewWebhookDeliverer(url string, logger *zap.Logger) *WebhookDeliverer {
	return &WebhookDeliverer{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

type webhookPayload struct {
	Event   string          `json:"event"`
	Article *models.Article `json:"article"`
}

func (d *WebhookDeliverer) Deliver(ctx context.Context, article *models.Article) error {
	if d.url == "" {
		d.logger.Debug("no publish webhook configured", zap.String("article_id", article.ID))
		return nil
	}

	body, err := json.Marshal(webhookPayload{Event: "article.published", Article: article})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
