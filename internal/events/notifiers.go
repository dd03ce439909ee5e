package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// LogNotifier writes every event to a structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("event_id", event.ID.String()).
		Str("topic", event.Topic).
		Str("aggregate_id", event.AggregateID).
		RawJSON("data", event.Payload).
		Msg("domain_event")
	return nil
}

// Doer sends an HTTP request. *http.Client and the retrying resilience client both satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier posts events to a single HTTP endpoint.
type WebhookNotifier struct {
	URL    string
	Client Doer
	Topics map[string]bool
}

// Notify implements Notifier. A non-2xx response is reported as an error.
func (n WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if n.URL == "" {
		return nil
	}
	if n.Topics != nil && !n.Topics[event.Topic] {
		return nil
	}
	ctx, span := otel.Tracer("events.WebhookNotifier").Start(ctx, "WebhookNotifier.Notify")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.topic", event.Topic),
		attribute.String("webhook.event_id", event.ID.String()),
	)
	if err := validateURL(n.URL); err != nil {
		span.RecordError(err)
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "toko-kasir-webhooks/1.0")
	req.Header.Set("X-Event-ID", event.ID.String())
	req.Header.Set("X-Idempotency-Key", event.ID.String())
	client := n.Client
	if client == nil {
		client = HTTPClient(5 * time.Second)
	}
	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s responded %d", event.Topic, resp.StatusCode)
	}
	return nil
}

// HTTPClient returns an HTTP client with traced transport.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}
