package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Provider sends one SMS synchronously. A nil error is the delivery
// acknowledgment the dispatcher requires before touching the record.
type Provider interface {
	Send(ctx context.Context, to, from, body string) error
}

type ProviderConfig struct {
	Kind         string
	WebhookURL   string
	WebhookToken string
}

func NewProvider(cfg ProviderConfig, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Kind {
	case "", "stub", "log":
		return logProvider{logger: logger}
	case "noop":
		return noopProvider{}
	case "fail":
		return failProvider{}
	case "webhook":
		if cfg.WebhookURL == "" {
			return logProvider{logger: logger}
		}
		return webhookProvider{url: cfg.WebhookURL, token: cfg.WebhookToken}
	default:
		return logProvider{logger: logger}
	}
}

type logProvider struct {
	logger *zap.Logger
}

func (p logProvider) Send(ctx context.Context, to, from, body string) error {
	p.logger.Info("sms send",
		zap.String("to", to),
		zap.String("from", from),
		zap.String("body", body))
	return nil
}

type noopProvider struct{}

func (noopProvider) Send(ctx context.Context, to, from, body string) error {
	return nil
}

type failProvider struct{}

func (failProvider) Send(ctx context.Context, to, from, body string) error {
	return errors.New("provider failure")
}

type webhookProvider struct {
	url   string
	token string
}

func (p webhookProvider) Send(ctx context.Context, to, from, body string) error {
	payload := map[string]string{
		"to":   to,
		"from": from,
		"body": body,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("provider rejected request")
	}
	return nil
}
