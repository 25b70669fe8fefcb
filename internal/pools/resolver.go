// Package pools locates diesel pool reserves for liquidity positions held
// by an account.
package pools

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/hivefolio/tracker/internal/cache"
	"github.com/hivefolio/tracker/internal/domain"
	"github.com/hivefolio/tracker/internal/engine"
)

const (
	defaultSearchRetries = 5
	defaultSearchDelay   = 2 * time.Second
	bulkScanLimit        = 100
)

// EngineClient is the subset of the Hive Engine client used by the pool
// resolver.
type EngineClient interface {
	PoolsQuery(ctx context.Context, query map[string]any, limit int) []engine.PoolRecord
	LiquidityPositions(ctx context.Context, account string) []engine.PositionRecord
}

// Resolver finds pool reserve state by token pair, tolerating pools that
// are registered under the reversed pair ordering.
type Resolver struct {
	engine  EngineClient
	cache   *cache.Cache[domain.PoolReserves]
	memo    map[string]domain.PoolReserves
	retries int
	delay   time.Duration

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(lo, hi float64) time.Duration
}

// NewResolver creates a pool resolver backed by the given reserve cache.
func NewResolver(client EngineClient, poolCache *cache.Cache[domain.PoolReserves]) *Resolver {
	return &Resolver{
		engine:  client,
		cache:   poolCache,
		memo:    make(map[string]domain.PoolReserves),
		retries: defaultSearchRetries,
		delay:   defaultSearchDelay,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
		jitter: func(lo, hi float64) time.Duration {
			return time.Duration((lo + rand.Float64()*(hi-lo)) * float64(time.Second))
		},
	}
}

// Reset drops the run-local memo. Long-lived resolvers call it between
// valuation runs so results older than the cache window get refetched and
// failed lookups are retried.
func (r *Resolver) Reset() {
	r.memo = make(map[string]domain.PoolReserves)
}

// ResolvePool returns the reserves of the pool trading the given pair, in
// either pair order. The whole search is retried with a growing delay; a
// false result means no pool could be located within the retry budget, or
// the located pool reported no outstanding shares.
func (r *Resolver) ResolvePool(ctx context.Context, pair domain.Pair) (domain.PoolReserves, bool) {
	key := pair.String()
	if res, ok := r.memo[key]; ok {
		return res, true
	}
	if res, ok := r.cache.Get(key); ok {
		r.memo[key] = res
		return res, true
	}

	for attempt := 0; attempt < r.retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt+1)*r.delay + r.jitter(0.5, 2.0)
			slog.Debug("retrying pool search", "pair", key, "attempt", attempt+1, "delay", delay)
			if err := r.sleep(ctx, delay); err != nil {
				return domain.PoolReserves{}, false
			}
		}

		rec, found := r.search(ctx, pair)
		if !found {
			continue
		}
		if !rec.TotalShares.IsPositive() {
			// The pool exists but has no liquidity; retrying the
			// search cannot change that.
			slog.Debug("pool has no outstanding shares", "pair", rec.TokenPair)
			return domain.PoolReserves{}, false
		}
		res := toReserves(pair, rec)
		r.memo[key] = res
		r.cache.Put(key, res)
		return res, true
	}

	slog.Warn("pool not found", "pair", key, "attempts", r.retries)
	return domain.PoolReserves{}, false
}

// search runs the four lookup shapes in order: exact pair string, separate
// base and quote fields, the same fields reversed, and finally a bulk scan
// matched locally in either orientation.
func (r *Resolver) search(ctx context.Context, pair domain.Pair) (engine.PoolRecord, bool) {
	direct := r.engine.PoolsQuery(ctx, map[string]any{"tokenPair": pair.String()}, 1)
	if len(direct) > 0 {
		return direct[0], true
	}

	byFields := r.engine.PoolsQuery(ctx, map[string]any{
		"baseSymbol":  string(pair.Base),
		"quoteSymbol": string(pair.Quote),
	}, 1)
	if len(byFields) > 0 {
		return byFields[0], true
	}

	reversed := r.engine.PoolsQuery(ctx, map[string]any{
		"baseSymbol":  string(pair.Quote),
		"quoteSymbol": string(pair.Base),
	}, 1)
	if len(reversed) > 0 {
		return reversed[0], true
	}

	bulk := r.engine.PoolsQuery(ctx, map[string]any{}, bulkScanLimit)
	want, wantRev := pair.String(), pair.Reversed().String()
	for _, rec := range bulk {
		if rec.TokenPair == want || rec.TokenPair == wantRev {
			return rec, true
		}
		if matchesSymbols(rec, pair) {
			return rec, true
		}
	}
	return engine.PoolRecord{}, false
}

// matchesSymbols reports whether the pool trades exactly the pair's two
// symbols, in either orientation.
func matchesSymbols(rec engine.PoolRecord, pair domain.Pair) bool {
	base, quote := string(pair.Base), string(pair.Quote)
	if rec.BaseSymbol == base && rec.QuoteSymbol == quote {
		return true
	}
	return rec.BaseSymbol == quote && rec.QuoteSymbol == base
}

// toReserves normalizes a pool record onto the requested pair. When the
// pool is registered in the reversed orientation the reserve columns keep
// their own symbols, so downstream valuation stays correct either way.
func toReserves(pair domain.Pair, rec engine.PoolRecord) domain.PoolReserves {
	return domain.PoolReserves{
		Pair:        pair,
		BaseSymbol:  domain.Symbol(rec.BaseSymbol),
		QuoteSymbol: domain.Symbol(rec.QuoteSymbol),
		BaseQty:     rec.BaseQuantity.Decimal,
		QuoteQty:    rec.QuoteQuantity.Decimal,
		TotalShares: rec.TotalShares.Decimal,
	}
}

// Positions returns the account's liquidity positions. Positions with no
// shares are dropped and positions whose pair string does not parse are
// logged and skipped.
func (r *Resolver) Positions(ctx context.Context, account string) []domain.PoolPosition {
	records := r.engine.LiquidityPositions(ctx, account)
	out := make([]domain.PoolPosition, 0, len(records))
	for _, rec := range records {
		if !rec.Shares.IsPositive() {
			continue
		}
		pair, err := domain.ParsePair(rec.TokenPair)
		if err != nil {
			slog.Warn("skipping position with malformed pair", "account", account, "tokenPair", rec.TokenPair)
			continue
		}
		out = append(out, domain.PoolPosition{
			Pair:   pair,
			PoolID: strconv.FormatInt(rec.ID, 10),
			Shares: rec.Shares.Decimal,
		})
	}
	return out
}
