// Package hyperliquid implements domain.DataSource against the public
// Hyperliquid info API. All queries are POSTs to a single endpoint with a
// typed JSON body. The client owns retry: failed requests are reattempted a
// bounded number of times with incremental backoff before a terminal error
// is surfaced.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quantstack/tradeledger/internal/domain"
)

// DefaultAPIURL is the public info endpoint.
const DefaultAPIURL = "https://api.hyperliquid.xyz/info"

// ClientConfig holds connection parameters for the info API client. Zero
// values fall back to the defaults.
type ClientConfig struct {
	APIURL     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client is the REST client for the Hyperliquid info API.
type Client struct {
	apiURL     string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// New creates an info API client.
func New(cfg ClientConfig) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Client{
		apiURL: cfg.APIURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// post sends one info request, retrying transient failures with a delay that
// grows linearly with the attempt number. The context bounds the whole retry
// loop, not just individual attempts.
func (c *Client) post(ctx context.Context, body infoRequest) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: marshal %s request: %w", body.Type, err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("hyperliquid: %s: %w", body.Type, ctx.Err())
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		respBody, err := c.doOnce(ctx, payload)
		if err == nil {
			return respBody, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("hyperliquid: %s after %d attempts: %w (%v)",
		body.Type, c.maxRetries, domain.ErrFetchFailed, lastErr)
}

func (c *Client) doOnce(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

// UserFills returns the account's historical executions, unordered.
func (c *Client) UserFills(ctx context.Context, user string) ([]domain.Fill, error) {
	respBody, err := c.post(ctx, infoRequest{Type: "userFills", User: strings.ToLower(user)})
	if err != nil {
		return nil, err
	}

	var fills []domain.Fill
	if err := json.Unmarshal(respBody, &fills); err != nil {
		return nil, fmt.Errorf("hyperliquid: decode user fills: %w", err)
	}
	return fills, nil
}

// AccountState returns the current clearinghouse snapshot.
func (c *Client) AccountState(ctx context.Context, user string) (domain.AccountState, error) {
	respBody, err := c.post(ctx, infoRequest{Type: "clearinghouseState", User: strings.ToLower(user)})
	if err != nil {
		return domain.AccountState{}, err
	}

	var state apiClearinghouseState
	if err := json.Unmarshal(respBody, &state); err != nil {
		return domain.AccountState{}, fmt.Errorf("hyperliquid: decode clearinghouse state: %w", err)
	}
	return state.ToDomainAccountState(), nil
}

// UserDeposits returns the account's positive USDC inflows from the
// non-funding ledger.
func (c *Client) UserDeposits(ctx context.Context, user string) ([]domain.Deposit, error) {
	respBody, err := c.post(ctx, infoRequest{
		Type:      "userNonFundingLedgerUpdates",
		User:      strings.ToLower(user),
		StartTime: 0,
	})
	if err != nil {
		return nil, err
	}

	var updates []apiLedgerUpdate
	if err := json.Unmarshal(respBody, &updates); err != nil {
		return nil, fmt.Errorf("hyperliquid: decode ledger updates: %w", err)
	}

	deposits := make([]domain.Deposit, 0, len(updates))
	for _, u := range updates {
		if d, ok := u.ToDomainDeposit(); ok {
			deposits = append(deposits, d)
		}
	}
	return deposits, nil
}
