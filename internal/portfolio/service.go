// Package portfolio assembles a complete account valuation from the
// market, pool, holdings and base-chain services.
package portfolio

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/hivefolio/tracker/internal/domain"
	"github.com/hivefolio/tracker/internal/valuation"
)

// HoldingsService reconciles token balances.
type HoldingsService interface {
	TokenHoldings(ctx context.Context, account string, symbols []domain.Symbol) []domain.HoldingRecord
	HeldSymbols(ctx context.Context, account string) []domain.Symbol
}

// MarketResolver resolves token prices. Reset starts a fresh run so the
// resolver's run-local state does not outlive a single build.
type MarketResolver interface {
	ResolvePrice(ctx context.Context, symbol domain.Symbol) domain.PriceQuote
	Reset()
}

// PoolResolver resolves liquidity positions and pool reserves.
type PoolResolver interface {
	Positions(ctx context.Context, account string) []domain.PoolPosition
	ResolvePool(ctx context.Context, pair domain.Pair) (domain.PoolReserves, bool)
	Reset()
}

// ChainReader fetches base-chain holdings.
type ChainReader interface {
	Holdings(ctx context.Context, account string) (domain.Layer1Holdings, error)
}

// ReferencePricer fetches the external fiat prices for a run.
type ReferencePricer interface {
	ReferencePrices(ctx context.Context) domain.ReferencePrices
}

// Service builds portfolios.
type Service struct {
	holdings HoldingsService
	market   MarketResolver
	pools    PoolResolver
	chain    ChainReader
	external ReferencePricer

	now func() time.Time
}

// NewService wires a portfolio builder from its collaborators. The chain
// reader may be nil when base-chain valuation is disabled.
func NewService(h HoldingsService, m MarketResolver, p PoolResolver, c ChainReader, e ReferencePricer) *Service {
	return &Service{
		holdings: h,
		market:   m,
		pools:    p,
		chain:    c,
		external: e,
		now:      time.Now,
	}
}

// Build values the account's complete position. When symbols is empty the
// account's full balance list is used. includeLayer1 additionally values
// the base-chain holdings; a chain read failure downgrades the report to
// tokens and pools only rather than failing the run.
func (s *Service) Build(ctx context.Context, account string, symbols []domain.Symbol, includeLayer1 bool) domain.Portfolio {
	// In daemon mode the same resolvers serve every run; without this a
	// quote resolved on the first run would be reused forever.
	s.market.Reset()
	s.pools.Reset()

	prices := s.external.ReferencePrices(ctx)

	if len(symbols) == 0 {
		symbols = s.holdings.HeldSymbols(ctx, account)
	}

	positions := s.pools.Positions(ctx, account)
	symbols = s.augmentWithPoolTokens(symbols, positions)

	p := domain.Portfolio{
		Account:   account,
		Timestamp: s.now().UTC(),
		Prices:    prices,
	}

	for _, rec := range s.holdings.TokenHoldings(ctx, account, symbols) {
		quote := s.market.ResolvePrice(ctx, rec.Symbol)
		line := valuation.TokenLine(rec, quote, prices)
		p.Tokens = append(p.Tokens, line)
		p.Total = p.Total.Add(line.Value)
	}

	for _, pos := range positions {
		res, ok := s.pools.ResolvePool(ctx, pos.Pair)
		if !ok {
			slog.Warn("skipping unresolvable pool position", "account", account, "pair", pos.Pair)
			continue
		}
		base := s.market.ResolvePrice(ctx, res.BaseSymbol)
		quote := s.market.ResolvePrice(ctx, res.QuoteSymbol)
		line := valuation.PoolLine(pos, res, base, quote, prices)
		if line.Value.Hive.IsZero() {
			// Neither side could be priced; an all-zero row is noise.
			slog.Debug("dropping valueless pool line", "pair", pos.Pair)
			continue
		}
		p.Pools = append(p.Pools, line)
		p.Total = p.Total.Add(line.Value)
	}

	if includeLayer1 && s.chain != nil {
		holdings, err := s.chain.Holdings(ctx, account)
		if err != nil {
			slog.Warn("base-chain holdings unavailable", "account", account, "error", err)
		} else {
			line := valuation.Layer1Line(holdings, prices)
			p.Layer1 = &line
			p.Total = p.Total.Add(line.Value)
		}
	}

	return p
}

// augmentWithPoolTokens extends the symbol list with every token that
// appears in a held pool, so pool constituents always get a price row.
func (s *Service) augmentWithPoolTokens(symbols []domain.Symbol, positions []domain.PoolPosition) []domain.Symbol {
	extra := lo.FlatMap(positions, func(pos domain.PoolPosition, _ int) []domain.Symbol {
		return []domain.Symbol{pos.Pair.Base, pos.Pair.Quote}
	})
	return lo.Uniq(append(symbols, extra...))
}
