package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrDeliveryFailed signals a non-2xx response or transport error during a
// webhook POST. The scheduler treats it as a soft failure.
var ErrDeliveryFailed = errors.New("delivery failed")

// WebhookClient delivers summary reports as JSON over HTTP POST.
type WebhookClient struct {
	client *http.Client
}

// NewWebhookClient creates a webhook client. A nil httpClient gets a default
// with a 30s timeout.
func NewWebhookClient(httpClient *http.Client) *WebhookClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebhookClient{client: httpClient}
}

// Deliver posts the report to url. Any 2xx status counts as success.
func (c *WebhookClient) Deliver(ctx context.Context, url string, report *SummaryReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %d", ErrDeliveryFailed, resp.StatusCode)
	}

	return nil
}
