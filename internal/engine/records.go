package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hivefolio/tracker/internal/domain"
)

// BalanceRecord is one row of the tokens.balances table.
type BalanceRecord struct {
	Account     string          `json:"account"`
	Symbol      string          `json:"symbol"`
	Balance     domain.Quantity `json:"balance"`
	Stake       domain.Quantity `json:"stake"`
	Delegations domain.Quantity `json:"delegations"`
}

// DelegationRecord is one row of the tokens.delegations table, keyed by the
// delegating account.
type DelegationRecord struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	Symbol   string          `json:"symbol"`
	Quantity domain.Quantity `json:"quantity"`
}

// PositionRecord is one row of the marketpools.liquidityPositions table.
type PositionRecord struct {
	ID        int64           `json:"_id"`
	Account   string          `json:"account"`
	TokenPair string          `json:"tokenPair"`
	Shares    domain.Quantity `json:"shares"`
}

// PoolRecord is one row of the marketpools.pools table.
type PoolRecord struct {
	ID            int64           `json:"_id"`
	TokenPair     string          `json:"tokenPair"`
	BaseSymbol    string          `json:"baseSymbol"`
	QuoteSymbol   string          `json:"quoteSymbol"`
	BaseQuantity  domain.Quantity `json:"baseQuantity"`
	QuoteQuantity domain.Quantity `json:"quoteQuantity"`
	TotalShares   domain.Quantity `json:"totalShares"`
}

// MetricsRecord is the aggregated market.metrics row for one symbol.
type MetricsRecord struct {
	Symbol    string          `json:"symbol"`
	LastPrice domain.Quantity `json:"lastPrice"`
	Volume    domain.Quantity `json:"volume"`
}

// TradeRecord is one row of the market.tradesHistory table.
type TradeRecord struct {
	Symbol    string          `json:"symbol"`
	Price     domain.Quantity `json:"price"`
	Volume    domain.Quantity `json:"volume"`
	Timestamp int64           `json:"timestamp"`
}

// OrderRecord is one row of the market.buyBook or market.sellBook tables.
type OrderRecord struct {
	Symbol   string          `json:"symbol"`
	Price    domain.Quantity `json:"price"`
	Quantity domain.Quantity `json:"quantity"`
}

// TokenRecord is one row of the tokens.tokens registry table.
type TokenRecord struct {
	Symbol string `json:"symbol"`
}

// decodeRecords unmarshals raw records into T, logging and skipping any
// record that does not decode.
func decodeRecords[T any](table string, raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var rec T
		if err := json.Unmarshal(r, &rec); err != nil {
			slog.Warn("skipping undecodable record", "table", table, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Balances fetches all token balances held by account. Empty on exhaustion.
func (c *Client) Balances(ctx context.Context, account string) []BalanceRecord {
	raw := c.FindRetry(ctx, "tokens", "balances", map[string]any{"account": account}, DefaultLimit, 0)
	return decodeRecords[BalanceRecord]("balances", raw)
}

// DelegationsOut fetches all outbound delegations from account. Empty on
// exhaustion.
func (c *Client) DelegationsOut(ctx context.Context, account string) []DelegationRecord {
	raw := c.FindRetry(ctx, "tokens", "delegations", map[string]any{"from": account}, DefaultLimit, 0)
	return decodeRecords[DelegationRecord]("delegations", raw)
}

// LiquidityPositions fetches the account's diesel pool share positions.
// Empty on exhaustion.
func (c *Client) LiquidityPositions(ctx context.Context, account string) []PositionRecord {
	raw := c.FindRetry(ctx, "marketpools", "liquidityPositions", map[string]any{"account": account}, DefaultLimit, 0)
	return decodeRecords[PositionRecord]("liquidityPositions", raw)
}

// PoolsQuery fetches pool records matching query. Empty on exhaustion.
func (c *Client) PoolsQuery(ctx context.Context, query map[string]any, limit int) []PoolRecord {
	raw := c.FindRetry(ctx, "marketpools", "pools", query, limit, 0)
	return decodeRecords[PoolRecord]("pools", raw)
}

// Metrics fetches the aggregated market metrics row for symbol. Returns nil
// without error when the symbol has no metrics.
func (c *Client) Metrics(ctx context.Context, symbol domain.Symbol) (*MetricsRecord, error) {
	raw, err := c.Find(ctx, "market", "metrics", map[string]any{"symbol": string(symbol)}, 1, 0)
	if err != nil {
		return nil, err
	}
	recs := decodeRecords[MetricsRecord]("metrics", raw)
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// TradeHistory fetches one page of recent trades for symbol. Unlike the
// retrying helpers this surfaces errors, because a "does not exist" answer
// steers the market resolver to its next strategy.
func (c *Client) TradeHistory(ctx context.Context, symbol domain.Symbol, limit, offset int) ([]TradeRecord, error) {
	raw, err := c.Find(ctx, "market", "tradesHistory", map[string]any{"symbol": string(symbol)}, limit, offset)
	if err != nil {
		return nil, err
	}
	return decodeRecords[TradeRecord]("tradesHistory", raw), nil
}

// BuyBook fetches the top of the buy order book for symbol.
func (c *Client) BuyBook(ctx context.Context, symbol domain.Symbol, limit int) ([]OrderRecord, error) {
	raw, err := c.Find(ctx, "market", "buyBook", map[string]any{"symbol": string(symbol)}, limit, 0)
	if err != nil {
		return nil, err
	}
	return decodeRecords[OrderRecord]("buyBook", raw), nil
}

// SellBook fetches the top of the sell order book for symbol.
func (c *Client) SellBook(ctx context.Context, symbol domain.Symbol, limit int) ([]OrderRecord, error) {
	raw, err := c.Find(ctx, "market", "sellBook", map[string]any{"symbol": string(symbol)}, limit, 0)
	if err != nil {
		return nil, err
	}
	return decodeRecords[OrderRecord]("sellBook", raw), nil
}

// AllTokens pages through the token registry and returns the set of valid
// symbols.
func (c *Client) AllTokens(ctx context.Context) map[domain.Symbol]bool {
	symbols := make(map[domain.Symbol]bool)
	offset := 0
	for {
		raw := c.FindRetry(ctx, "tokens", "tokens", nil, DefaultLimit, offset)
		if len(raw) == 0 {
			break
		}
		for _, rec := range decodeRecords[TokenRecord]("tokens", raw) {
			if rec.Symbol != "" {
				symbols[domain.Symbol(rec.Symbol)] = true
			}
		}
		if len(raw) < DefaultLimit {
			break
		}
		offset += len(raw)
	}
	return symbols
}
