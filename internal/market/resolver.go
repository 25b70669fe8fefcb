// Package market resolves token prices from the exchange layer, falling
// through a chain of sources until one yields a usable price.
package market

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hivefolio/tracker/internal/cache"
	"github.com/hivefolio/tracker/internal/domain"
	"github.com/hivefolio/tracker/internal/engine"
)

const (
	// volumeWindow bounds the trades counted toward 24h volume.
	volumeWindow = 86400 * time.Second

	defaultTradeBatch = 1000
	defaultRetries    = 3
	defaultDelay      = 2 * time.Second
)

// EngineClient is the subset of the Hive Engine client used by the resolver.
type EngineClient interface {
	Metrics(ctx context.Context, symbol domain.Symbol) (*engine.MetricsRecord, error)
	TradeHistory(ctx context.Context, symbol domain.Symbol, limit, offset int) ([]engine.TradeRecord, error)
	BuyBook(ctx context.Context, symbol domain.Symbol, limit int) ([]engine.OrderRecord, error)
	SellBook(ctx context.Context, symbol domain.Symbol, limit int) ([]engine.OrderRecord, error)
	FindRetry(ctx context.Context, contract, table string, query map[string]any, limit, offset int) []json.RawMessage
}

// Resolver resolves per-symbol market prices with fallback and caching.
type Resolver struct {
	engine     EngineClient
	cache      *cache.Cache[domain.PriceQuote]
	memo       map[domain.Symbol]domain.PriceQuote
	tradeBatch int
	retries    int
	delay      time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewResolver creates a price resolver backed by the given market cache.
func NewResolver(client EngineClient, priceCache *cache.Cache[domain.PriceQuote]) *Resolver {
	return &Resolver{
		engine:     client,
		cache:      priceCache,
		memo:       make(map[domain.Symbol]domain.PriceQuote),
		tradeBatch: defaultTradeBatch,
		retries:    defaultRetries,
		delay:      defaultDelay,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
		now: time.Now,
	}
}

// Reset drops the run-local memo. Long-lived resolvers call it between
// valuation runs so quotes older than the cache window get refetched and
// failed resolutions are retried.
func (r *Resolver) Reset() {
	r.memo = make(map[domain.Symbol]domain.PriceQuote)
}

// ResolvePrice returns the symbol's price in HIVE and its 24h volume.
// Sources are tried in order: cached quote, aggregated metrics, paginated
// trade history, order book probe, direct book table lookup, and a final
// metrics re-attempt. A (0, 0) result means every source failed; callers
// must treat it as "valuation unavailable", not as a verified zero.
func (r *Resolver) ResolvePrice(ctx context.Context, symbol domain.Symbol) domain.PriceQuote {
	// The wrapped reference coin is always worth exactly one HIVE.
	if symbol == domain.SwapHive {
		return domain.PriceQuote{Symbol: symbol, PriceHive: decimal.NewFromInt(1), Volume24h: decimal.Zero}
	}

	if q, ok := r.memo[symbol]; ok {
		return q
	}
	if q, ok := r.cache.Get(string(symbol)); ok {
		r.memo[symbol] = q
		return q
	}

	if q, ok := r.fromMetrics(ctx, symbol, true); ok {
		return q
	}
	if q, ok := r.fromTrades(ctx, symbol); ok {
		return q
	}
	// Last resort: the metrics row may have appeared since the first probe.
	if q, ok := r.fromMetrics(ctx, symbol, false); ok {
		return q
	}

	slog.Warn("all price sources failed", "symbol", symbol)
	q := domain.PriceQuote{Symbol: symbol}
	r.memo[symbol] = q
	return q
}

// found records a successful resolution in the memo and the durable cache.
func (r *Resolver) found(symbol domain.Symbol, price, volume decimal.Decimal) domain.PriceQuote {
	q := domain.PriceQuote{Symbol: symbol, PriceHive: price, Volume24h: volume}
	r.memo[symbol] = q
	r.cache.Put(string(symbol), q)
	return q
}

func (r *Resolver) fromMetrics(ctx context.Context, symbol domain.Symbol, withVolume bool) (domain.PriceQuote, bool) {
	metrics, err := r.engine.Metrics(ctx, symbol)
	if err != nil {
		slog.Debug("metrics lookup failed", "symbol", symbol, "error", err)
		return domain.PriceQuote{}, false
	}
	if metrics == nil || !metrics.LastPrice.IsPositive() {
		return domain.PriceQuote{}, false
	}
	volume := decimal.Zero
	if withVolume {
		volume = metrics.Volume.Decimal
	}
	slog.Debug("using metrics price", "symbol", symbol, "price", metrics.LastPrice)
	return r.found(symbol, metrics.LastPrice.Decimal, volume), true
}

// fromTrades paginates the full trade history. On a "does not exist" class
// error it falls through to the order book strategies instead of retrying.
func (r *Resolver) fromTrades(ctx context.Context, symbol domain.Symbol) (domain.PriceQuote, bool) {
	for attempt := 0; attempt < r.retries; attempt++ {
		trades, err := r.fetchAllTrades(ctx, symbol)
		if err == nil {
			if len(trades) == 0 {
				return domain.PriceQuote{}, false
			}
			price := trades[0].Price.Decimal
			slog.Debug("using trade history price", "symbol", symbol, "price", price)
			return r.found(symbol, price, r.volume24h(trades)), true
		}

		slog.Debug("trade history failed", "symbol", symbol, "attempt", attempt+1, "error", err)
		if engine.IsNotFound(err) {
			if q, ok := r.fromOrderBook(ctx, symbol); ok {
				return q, true
			}
			if q, ok := r.fromBookTables(ctx, symbol); ok {
				return q, true
			}
			return domain.PriceQuote{}, false
		}
		if attempt < r.retries-1 {
			if err := r.sleep(ctx, r.delay); err != nil {
				return domain.PriceQuote{}, false
			}
		}
	}
	return domain.PriceQuote{}, false
}

func (r *Resolver) fetchAllTrades(ctx context.Context, symbol domain.Symbol) ([]engine.TradeRecord, error) {
	var all []engine.TradeRecord
	offset := 0
	for {
		trades, err := r.engine.TradeHistory(ctx, symbol, r.tradeBatch, offset)
		if err != nil {
			return nil, err
		}
		if len(trades) == 0 {
			break
		}
		all = append(all, trades...)
		if len(trades) < r.tradeBatch {
			break
		}
		offset += r.tradeBatch
	}
	return all, nil
}

func (r *Resolver) volume24h(trades []engine.TradeRecord) decimal.Decimal {
	cutoff := r.now().Add(-volumeWindow).Unix()
	total := decimal.Zero
	for _, t := range trades {
		if t.Timestamp >= cutoff {
			total = total.Add(t.Volume.Decimal)
		}
	}
	return total
}

// fromOrderBook probes the best bid and best ask: the average when both are
// present, either one alone otherwise. Order books carry no volume data.
func (r *Resolver) fromOrderBook(ctx context.Context, symbol domain.Symbol) (domain.PriceQuote, bool) {
	price := decimal.Zero

	buys, err := r.engine.BuyBook(ctx, symbol, 1)
	if err != nil {
		slog.Debug("buy book probe failed", "symbol", symbol, "error", err)
	} else if len(buys) > 0 {
		price = buys[0].Price.Decimal
	}

	sells, err := r.engine.SellBook(ctx, symbol, 1)
	if err != nil {
		slog.Debug("sell book probe failed", "symbol", symbol, "error", err)
	} else if len(sells) > 0 {
		sell := sells[0].Price.Decimal
		if price.IsZero() {
			price = sell
		} else {
			price = price.Add(sell).Div(decimal.NewFromInt(2))
		}
	}

	if !price.IsPositive() {
		return domain.PriceQuote{}, false
	}
	slog.Debug("using order book price", "symbol", symbol, "price", price)
	return r.found(symbol, price, decimal.Zero), true
}

// fromBookTables scans the buy then sell book tables directly through the
// resilient fetcher.
func (r *Resolver) fromBookTables(ctx context.Context, symbol domain.Symbol) (domain.PriceQuote, bool) {
	query := map[string]any{"symbol": string(symbol)}
	raw := r.engine.FindRetry(ctx, "market", "buyBook", query, 1, 0)
	if len(raw) == 0 {
		raw = r.engine.FindRetry(ctx, "market", "sellBook", query, 1, 0)
	}
	if len(raw) == 0 {
		return domain.PriceQuote{}, false
	}

	var order engine.OrderRecord
	if err := json.Unmarshal(raw[0], &order); err != nil {
		slog.Debug("undecodable book record", "symbol", symbol, "error", err)
		return domain.PriceQuote{}, false
	}
	if !order.Price.IsPositive() {
		return domain.PriceQuote{}, false
	}
	slog.Debug("using direct book table price", "symbol", symbol, "price", order.Price)
	return r.found(symbol, order.Price.Decimal, decimal.Zero), true
}
