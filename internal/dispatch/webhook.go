package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebhookPayload is the signed task handoff POSTed to an agent's endpoint.
type WebhookPayload struct {
	TaskID      string `json:"taskId"`
	Description string `json:"description"`
	ServiceType string `json:"serviceType,omitempty"`
	Price       string `json:"price,omitempty"`
}

// webhookResponse is the minimal shape of an agent's answer. Anything
// without a result field counts as a failed dispatch.
type webhookResponse struct {
	Result string `json:"result"`
}

// WebhookClient delivers tasks to agent endpoints. Calls are bounded by the
// client timeout; a slow agent fails its own dispatch, not the loop.
type WebhookClient struct {
	client *http.Client
	signer *Signer
}

// NewWebhookClient creates a WebhookClient with the given per-call timeout.
func NewWebhookClient(timeout time.Duration, signer *Signer) *WebhookClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookClient{
		client: &http.Client{Timeout: timeout},
		signer: signer,
	}
}

// Call POSTs the signed payload to endpoint and returns the agent's result.
// Timeouts, non-2xx statuses and bodies without a result all return errors.
func (c *WebhookClient) Call(ctx context.Context, endpoint string, payload WebhookPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sig := c.signer.Sign(body); sig != "" {
		req.Header.Set(SignatureHeader, sig)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call agent webhook: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("agent webhook returned status %d", resp.StatusCode)
	}

	var parsed webhookResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode webhook response: %w", err)
	}
	if strings.TrimSpace(parsed.Result) == "" {
		return "", fmt.Errorf("agent webhook response has no result")
	}
	return parsed.Result, nil
}
