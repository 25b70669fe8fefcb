// Package chain reads base-layer account state through the condenser API,
// falling back across a list of public RPC endpoints.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hivefolio/tracker/internal/cache"
)

// DefaultEndpoints are tried in order until one answers.
var DefaultEndpoints = []string{
	"https://api.hive.blog",
	"https://api.deathwing.me",
	"https://anyx.io",
}

// ErrAllEndpointsFailed is returned when no configured endpoint produced a
// usable response.
var ErrAllEndpointsFailed = errors.New("all chain endpoints failed")

// Client calls condenser API methods with endpoint fallback and a
// file-backed response cache.
type Client struct {
	endpoints  []string
	httpClient *http.Client
	cache      *cache.Cache[json.RawMessage]
}

// NewClient creates a chain client over the given endpoints. A nil cache
// disables response caching.
func NewClient(endpoints []string, responseCache *cache.Cache[json.RawMessage]) *Client {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	return &Client{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      responseCache,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call tries each endpoint in order and returns the first successful
// result. Results are cached under cacheKey when one is given.
func (c *Client) call(ctx context.Context, method string, params any, cacheKey string) (json.RawMessage, error) {
	if cacheKey != "" && c.cache != nil {
		if raw, ok := c.cache.Get(cacheKey); ok {
			return raw, nil
		}
	}

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	var lastErr error
	for _, endpoint := range c.endpoints {
		raw, err := c.post(ctx, endpoint, body)
		if err != nil {
			slog.Debug("chain endpoint failed", "endpoint", endpoint, "method", method, "error", err)
			lastErr = err
			continue
		}
		if cacheKey != "" && c.cache != nil {
			c.cache.Put(cacheKey, raw)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrAllEndpointsFailed, method, lastErr)
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rpc.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpc.Error.Code, rpc.Error.Message)
	}
	return rpc.Result, nil
}

// accountState mirrors the condenser_api.get_accounts fields we consume.
// Amounts arrive as "123.456 HIVE" strings and vesting values in VESTS.
type accountState struct {
	Name                   string `json:"name"`
	Balance                string `json:"balance"`
	SavingsBalance         string `json:"savings_balance"`
	HbdBalance             string `json:"hbd_balance"`
	SavingsHbdBalance      string `json:"savings_hbd_balance"`
	VestingShares          string `json:"vesting_shares"`
	DelegatedVestingShares string `json:"delegated_vesting_shares"`
	ReceivedVestingShares  string `json:"received_vesting_shares"`
}

// globalProps mirrors the dynamic global properties needed for the
// VESTS to HP conversion.
type globalProps struct {
	TotalVestingFundHive string `json:"total_vesting_fund_hive"`
	TotalVestingShares   string `json:"total_vesting_shares"`
}

// Account fetches the raw account state for name. A missing account is an
// error, not an empty result.
func (c *Client) account(ctx context.Context, name string) (*accountState, error) {
	raw, err := c.call(ctx, "condenser_api.get_accounts", [][]string{{name}}, "account:"+name)
	if err != nil {
		return nil, err
	}
	var accounts []accountState
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("account %q not found on chain", name)
	}
	return &accounts[0], nil
}

func (c *Client) properties(ctx context.Context) (*globalProps, error) {
	raw, err := c.call(ctx, "condenser_api.get_dynamic_global_properties", []any{}, "globals")
	if err != nil {
		return nil, err
	}
	var props globalProps
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, fmt.Errorf("decode global properties: %w", err)
	}
	return &props, nil
}
