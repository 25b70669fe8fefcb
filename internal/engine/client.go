// Package engine is the Hive Engine sidechain client. Find issues a single
// contracts query; FindRetry wraps it with exponential backoff, jitter and
// error classification, and is the fetch primitive the resolvers build on.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the public Hive Engine contracts RPC endpoint.
const DefaultEndpoint = "https://api.hive-engine.com/rpc/contracts"

// DefaultLimit is the record limit used for full-table fetches.
const DefaultLimit = 1000

// fatalAttemptCap bounds retries for errors that are neither transient nor
// rate limiting.
const fatalAttemptCap = 3

// Client queries Hive Engine contract tables over JSON-RPC.
type Client struct {
	endpoint   string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration

	// sleep and jitter are swapped out in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(lo, hi float64) time.Duration
}

// NewClient creates a Hive Engine client with the given retry budget and
// base backoff delay.
func NewClient(endpoint string, maxRetries int, baseDelay time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleepCtx,
		jitter:     jitterBetween,
	}
}

type rpcRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      int        `json:"id"`
	Method  string     `json:"method"`
	Params  findParams `json:"params"`
}

type findParams struct {
	Contract string         `json:"contract"`
	Table    string         `json:"table"`
	Query    map[string]any `json:"query"`
	Limit    int            `json:"limit"`
	Offset   int            `json:"offset"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Find runs a single find query against a contract table. A nil result from
// the node is returned as an empty slice.
func (c *Client) Find(ctx context.Context, contract, table string, query map[string]any, limit, offset int) ([]json.RawMessage, error) {
	if query == nil {
		query = map[string]any{}
	}
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "find",
		Params:  findParams{Contract: contract, Table: table, Query: query, Limit: limit, Offset: offset},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding find request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying %s.%s: %w", contract, table, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading response for %s.%s: %w", contract, table, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s.%s: %s", resp.StatusCode, contract, table, strings.TrimSpace(string(body)))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("parsing response for %s.%s: %w", contract, table, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("querying %s.%s: %w", contract, table, rpcResp.Error)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return []json.RawMessage{}, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(rpcResp.Result, &records); err != nil {
		return nil, fmt.Errorf("parsing records for %s.%s: %w", contract, table, err)
	}
	return records, nil
}

// FindRetry runs Find with the client's retry budget. Transient failures
// (503, timeout, connection) are retried with exponential backoff plus
// jitter; rate limiting adds an extra fixed delay; any other error gives up
// after at most three attempts. On exhaustion it returns an empty record
// set rather than an error, so callers must treat "empty" as "unknown".
func (c *Client) FindRetry(ctx context.Context, contract, table string, query map[string]any, limit, offset int) []json.RawMessage {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay*(1<<uint(attempt-1)) + c.jitter(0.5, 1.5)
			slog.Debug("backing off before retry",
				"table", table, "attempt", attempt+1, "retries", c.maxRetries, "delay", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return nil
			}
		}

		records, err := c.Find(ctx, contract, table, query, limit, offset)
		if err == nil {
			return records
		}

		slog.Debug("fetch failed", "table", table, "attempt", attempt+1, "error", err)
		switch classify(err) {
		case kindTransient:
			continue
		case kindRateLimit:
			// Extra fixed delay on top of the next backoff sleep.
			if err := c.sleep(ctx, 2*c.baseDelay); err != nil {
				return nil
			}
			continue
		default:
			if attempt >= fatalAttemptCap-1 {
				slog.Debug("giving up on non-transient error", "table", table, "error", err)
				return nil
			}
		}
	}

	slog.Debug("all attempts failed", "table", table, "retries", c.maxRetries)
	return nil
}

type errorKind int

const (
	kindFatal errorKind = iota
	kindTransient
	kindRateLimit
)

// classify buckets provider errors by message, the only signal the node
// gives us.
func classify(err error) errorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return kindRateLimit
	case strings.Contains(msg, "service temporarily unavailable"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection"):
		return kindTransient
	default:
		return kindFatal
	}
}

// IsNotFound reports whether err is a structural-absence error ("does not
// exist" class), which triggers the next fallback strategy instead of a
// retry.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "does not exist")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func jitterBetween(lo, hi float64) time.Duration {
	return time.Duration((lo + rand.Float64()*(hi-lo)) * float64(time.Second))
}
