package external

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hivefolio/tracker/internal/cache"
	"github.com/hivefolio/tracker/internal/domain"
)

// PriceFetcher fetches USD spot prices keyed by reference symbol.
type PriceFetcher interface {
	FetchPrices(ctx context.Context) (map[string]float64, error)
}

// Service resolves the reference fiat prices used by a valuation run.
type Service struct {
	fetcher PriceFetcher
	cache   *cache.Cache[decimal.Decimal]
	repo    QuoteRepository

	maxQuoteAge time.Duration
	now         func() time.Time
}

// NewService creates an external price service. The repository is optional;
// when nil, quotes are only cached on disk.
func NewService(fetcher PriceFetcher, priceCache *cache.Cache[decimal.Decimal], repo QuoteRepository) *Service {
	return &Service{
		fetcher:     fetcher,
		cache:       priceCache,
		repo:        repo,
		maxQuoteAge: cache.DefaultTTL,
		now:         time.Now,
	}
}

// ReferencePrices returns the HIVE, HBD and BTC prices in USD. Each symbol
// falls back independently: a cached value first, then a recent database
// quote, then a fresh fetch. When a price stays unavailable HIVE and BTC
// report zero, which downstream valuation treats as "unknown", while HBD
// falls back to its 1 USD peg.
func (s *Service) ReferencePrices(ctx context.Context) domain.ReferencePrices {
	prices := domain.ReferencePrices{
		HiveUSD: s.resolve(ctx, "HIVE"),
		HbdUSD:  s.resolve(ctx, "HBD"),
		BtcUSD:  s.resolve(ctx, "BTC"),
	}
	if !prices.HbdUSD.IsPositive() {
		slog.Warn("HBD price unavailable, assuming peg")
		prices.HbdUSD = decimal.NewFromInt(1)
	}
	return prices
}

func (s *Service) resolve(ctx context.Context, symbol string) decimal.Decimal {
	if p, ok := s.cache.Get(symbol); ok {
		return p
	}
	if p, ok := s.fromRepository(ctx, symbol); ok {
		s.cache.Put(symbol, p)
		return p
	}

	fetched, err := s.fetcher.FetchPrices(ctx)
	if err != nil {
		slog.Warn("external price fetch failed", "error", err)
		return decimal.Zero
	}

	for sym, usd := range fetched {
		p := decimal.NewFromFloat(usd)
		s.cache.Put(sym, p)
		if s.repo != nil {
			if err := s.repo.SaveQuote(ctx, sym, p); err != nil {
				slog.Warn("storing external quote failed", "symbol", sym, "error", err)
			}
		}
	}

	if p, ok := s.cache.Get(symbol); ok {
		return p
	}
	slog.Warn("external price missing from response", "symbol", symbol)
	return decimal.Zero
}

// fromRepository serves a recently stored quote, sparing a remote fetch
// when another process already refreshed the database.
func (s *Service) fromRepository(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	if s.repo == nil {
		return decimal.Zero, false
	}
	q, err := s.repo.GetQuote(ctx, symbol)
	if err != nil {
		slog.Debug("no stored quote", "symbol", symbol, "error", err)
		return decimal.Zero, false
	}
	if s.now().Sub(q.UpdatedAt) > s.maxQuoteAge {
		return decimal.Zero, false
	}
	return q.PriceInUSD, true
}
