// Package chain mirrors ledger events to the staking contract's RPC bridge.
// The local database stays authoritative; everything here is best-effort.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/holiman/uint256"

	apperrors "agora/internal/errors"
	"agora/internal/logging"
)

// Client implements domain.ChainMirror over the bridge's HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  logging.Logger
}

// NewClient creates a Client.
func NewClient(baseURL string, timeout time.Duration, logger logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logging.OrNop(logger),
	}
}

// MirrorSlash records a slash against wallet on-chain.
func (c *Client) MirrorSlash(ctx context.Context, wallet string, amount *uint256.Int) error {
	payload := map[string]string{
		"wallet": wallet,
		"amount": amount.Dec(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slash payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/slash", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.NewTransientError(fmt.Errorf("call chain bridge: %w", err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("chain bridge returned status %d", resp.StatusCode)
		if apperrors.IsTransientHTTPStatus(resp.StatusCode) {
			return apperrors.NewTransientError(err)
		}
		return err
	}
	return nil
}

// StakeOf reads the wallet's staked balance from the contract.
func (c *Client) StakeOf(ctx context.Context, wallet string) (*uint256.Int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stake/"+wallet, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call chain bridge: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, fmt.Errorf("read stake response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chain bridge returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Staked string `json:"staked"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode stake response: %w", err)
	}
	staked, err := uint256.FromDecimal(parsed.Staked)
	if err != nil {
		return nil, fmt.Errorf("invalid stake amount %q: %w", parsed.Staked, err)
	}
	return staked, nil
}
