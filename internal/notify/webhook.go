package notify

import (
	"context"
	"fmt"
	"time"

	"secondhand-race/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

const webhookTimeout = 10 * time.Second

// Webhook posts terminal events as json to an operator endpoint.
type Webhook struct {
	url    string
	client *resty.Client
}

func NewWebhook(url string, tel telemetry.API) Webhook {
	client := resty.New().SetTimeout(webhookTimeout)
	telemetry.InstrumentResty(client, telemetry.NewScopedAPI("webhook", tel))
	return Webhook{url: url, client: client}
}

func (w Webhook) Notify(ctx context.Context, event Event) error {
	if !event.Kind.Terminal() {
		return nil
	}

	res, err := w.client.R().
		SetContext(ctx).
		SetBody(event).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if res.StatusCode() >= 300 {
		return fmt.Errorf("webhook: unexpected status %s", res.Status())
	}
	return nil
}
