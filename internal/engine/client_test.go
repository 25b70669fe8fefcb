package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient returns a client whose backoff sleeps are recorded instead
// of slept.
func newTestClient(endpoint string, retries int, baseDelay time.Duration, slept *[]time.Duration) *Client {
	c := NewClient(endpoint, retries, baseDelay)
	c.sleep = func(_ context.Context, d time.Duration) error {
		if slept != nil {
			*slept = append(*slept, d)
		}
		return nil
	}
	c.jitter = func(lo, hi float64) time.Duration { return time.Millisecond }
	return c
}

func rpcResult(records string) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"result":%s}`, records)
}

func TestFindSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Method != "find" || req.Params.Contract != "tokens" || req.Params.Table != "balances" {
			t.Errorf("unexpected request params: %+v", req.Params)
		}
		w.Write([]byte(rpcResult(`[{"symbol":"LEO","balance":"10"}]`)))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 3, time.Second, nil)
	records, err := c.Find(context.Background(), "tokens", "balances", map[string]any{"account": "alice"}, 1000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
}

func TestFindNullResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 3, time.Second, nil)
	records, err := c.Find(context.Background(), "tokens", "balances", nil, 1000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
}

func TestFindRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"table does not exist"}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 3, time.Second, nil)
	_, err := c.Find(context.Background(), "market", "tradesHistory", nil, 1000, 0)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
}

func TestFindRetryRecoversFromTimeouts(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`timeout`))
			return
		}
		w.Write([]byte(rpcResult(`[{"symbol":"LEO"}]`)))
	}))
	defer server.Close()

	var slept []time.Duration
	c := newTestClient(server.URL, 5, 100*time.Millisecond, &slept)

	records := c.FindRetry(context.Background(), "tokens", "balances", nil, 1000, 0)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (payload from third attempt)", len(records))
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
	// Two backoff sleeps with strictly increasing minimum durations:
	// base*2^0 and base*2^1, plus jitter.
	if len(slept) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(slept))
	}
	if slept[0] < 100*time.Millisecond {
		t.Errorf("first sleep = %v, want >= 100ms", slept[0])
	}
	if slept[1] < 200*time.Millisecond {
		t.Errorf("second sleep = %v, want >= 200ms", slept[1])
	}
	if slept[1] <= slept[0] {
		t.Errorf("sleeps not increasing: %v then %v", slept[0], slept[1])
	}
}

func TestFindRetryExhaustionReturnsEmpty(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(server.URL, 4, time.Millisecond, nil)
	records := c.FindRetry(context.Background(), "tokens", "balances", nil, 1000, 0)
	if len(records) != 0 {
		t.Errorf("records = %d, want 0 on exhaustion", len(records))
	}
	if attempts.Load() != 4 {
		t.Errorf("attempts = %d, want full budget of 4", attempts.Load())
	}
}

func TestFindRetryFatalStopsEarly(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-1,"message":"internal assertion failure"}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 10, time.Millisecond, nil)
	records := c.FindRetry(context.Background(), "tokens", "balances", nil, 1000, 0)
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
	// Non-transient errors abort after at most 3 attempts, not the full 10.
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}

func TestFindRetryRateLimitAddsExtraDelay(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`rate limit exceeded`))
			return
		}
		w.Write([]byte(rpcResult(`[{"symbol":"LEO"}]`)))
	}))
	defer server.Close()

	var slept []time.Duration
	c := newTestClient(server.URL, 5, 50*time.Millisecond, &slept)

	records := c.FindRetry(context.Background(), "tokens", "balances", nil, 1000, 0)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	// Extra fixed delay after the 429, then the regular backoff sleep.
	if len(slept) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(slept))
	}
	if slept[0] != 100*time.Millisecond {
		t.Errorf("extra rate-limit delay = %v, want 100ms", slept[0])
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want errorKind
	}{
		{errors.New("HTTP 503 from tokens.balances: Service Temporarily Unavailable"), kindTransient},
		{errors.New("querying tokens.balances: dial tcp: i/o timeout"), kindTransient},
		{errors.New("querying tokens.balances: connection refused"), kindTransient},
		{errors.New("HTTP 429: rate limit exceeded"), kindRateLimit},
		{errors.New("rpc error -32602: invalid params"), kindFatal},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestDecodeRecordsSkipsMalformed(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"symbol":"LEO","balance":"5"}`),
		json.RawMessage(`["not","an","object"]`),
	}
	recs := decodeRecords[BalanceRecord]("balances", raw)
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	if recs[0].Symbol != "LEO" || recs[0].Balance.String() != "5" {
		t.Errorf("record = %+v", recs[0])
	}
}
