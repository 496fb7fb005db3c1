package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"homeservices-platform/internal/config"
)

// WebhookPushGateway posts push notifications to a server-key protected HTTP
// endpoint (FCM legacy-style).
type WebhookPushGateway struct {
	endpoint  string
	serverKey string

	httpClient *http.Client
}

func NewWebhookPushGateway(cfg config.PushConfig) (*WebhookPushGateway, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("notify: push endpoint is required")
	}
	return &WebhookPushGateway{
		endpoint:   cfg.Endpoint,
		serverKey:  cfg.ServerKey,
		httpClient: &http.Client{},
	}, nil
}

func (g *WebhookPushGateway) Name() string { return "webhook_push" }

func (g *WebhookPushGateway) Send(ctx context.Context, to Contact, templateID string, payload map[string]any) error {
	if to.DeviceToken == "" {
		return errors.New("notify: recipient has no device token")
	}

	rendered := RenderTemplate(templateID, payload)
	body, err := json.Marshal(map[string]any{
		"to": to.DeviceToken,
		"notification": map[string]string{
			"title": rendered.Subject,
			"body":  rendered.Body,
		},
		"data": payload,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.serverKey != "" {
		req.Header.Set("Authorization", "key="+g.serverKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
