// Package payment talks to the external settlement facilitator. The core
// only consumes a verified/unverified answer; everything cryptographic about
// the payment protocol stays on the facilitator's side of this boundary.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "agora/internal/errors"
	"agora/internal/logging"
	"agora/internal/market/domain"
)

// FacilitatorClient implements domain.PaymentVerifier over the facilitator's
// HTTP API.
type FacilitatorClient struct {
	baseURL string
	client  *http.Client
	logger  logging.Logger
}

// NewFacilitatorClient creates a FacilitatorClient.
func NewFacilitatorClient(baseURL string, timeout time.Duration, logger logging.Logger) *FacilitatorClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FacilitatorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logging.OrNop(logger),
	}
}

type verifyRequestBody struct {
	Resource     string `json:"resource"`
	Method       string `json:"method"`
	Credential   string `json:"credential"`
	PayTo        string `json:"payTo"`
	Network      string `json:"network"`
	Amount       string `json:"amount"`
	AssetAddress string `json:"assetAddress,omitempty"`
}

type verifyResponseBody struct {
	Settled       bool   `json:"settled"`
	Payer         string `json:"payer"`
	SettlementRef string `json:"settlementRef"`
	Error         string `json:"error"`
}

// Verify submits a payment credential for synchronous settlement.
func (c *FacilitatorClient) Verify(ctx context.Context, req domain.VerifyRequest) (domain.VerifyResult, error) {
	body := verifyRequestBody{
		Resource:     req.Resource,
		Method:       req.Method,
		Credential:   req.Credential,
		PayTo:        req.PayTo,
		Network:      req.Network,
		AssetAddress: req.AssetAddress,
	}
	if req.PriceAmount != nil {
		body.Amount = req.PriceAmount.Dec()
	}

	var parsed verifyResponseBody
	if err := c.post(ctx, "/verify", body, &parsed); err != nil {
		return domain.VerifyResult{}, err
	}
	if parsed.Error != "" {
		c.logger.Warn("facilitator rejected payment for %s: %s", req.Resource, parsed.Error)
		return domain.VerifyResult{}, fmt.Errorf("facilitator: %s", parsed.Error)
	}
	return domain.VerifyResult{
		Settled:       parsed.Settled,
		Payer:         parsed.Payer,
		SettlementRef: parsed.SettlementRef,
	}, nil
}

// CheckSettled reports whether proof references a real settled payment.
func (c *FacilitatorClient) CheckSettled(ctx context.Context, proof string) (bool, error) {
	var parsed verifyResponseBody
	if err := c.post(ctx, "/settled", map[string]string{"txHash": proof}, &parsed); err != nil {
		return false, err
	}
	return parsed.Settled, nil
}

func (c *FacilitatorClient) post(ctx context.Context, path string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal facilitator request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build facilitator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.NewTransientError(fmt.Errorf("call facilitator %s: %w", path, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read facilitator response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("facilitator %s returned status %d", path, resp.StatusCode)
		if apperrors.IsTransientHTTPStatus(resp.StatusCode) {
			return apperrors.NewTransientError(err)
		}
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode facilitator response: %w", err)
	}
	return nil
}
