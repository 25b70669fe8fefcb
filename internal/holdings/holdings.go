// Package holdings reconciles an account's token balances with its
// outbound delegations into per-symbol holding records.
package holdings

import (
	"context"

	"github.com/samber/lo"

	"github.com/hivefolio/tracker/internal/domain"
	"github.com/hivefolio/tracker/internal/engine"
)

// EngineClient is the subset of the Hive Engine client used for holdings.
type EngineClient interface {
	Balances(ctx context.Context, account string) []engine.BalanceRecord
	DelegationsOut(ctx context.Context, account string) []engine.DelegationRecord
}

// Service builds holding records for an account.
type Service struct {
	engine EngineClient
}

func NewService(client EngineClient) *Service {
	return &Service{engine: client}
}

// TokenHoldings returns the account's holdings for the requested symbols.
// Delegated-away amounts are the sum of the balance row's delegations
// field and the outbound rows of the delegations table. Symbols the
// account does not hold at all produce a zero record, so a requested
// token never silently vanishes from the report.
func (s *Service) TokenHoldings(ctx context.Context, account string, symbols []domain.Symbol) []domain.HoldingRecord {
	wanted := lo.SliceToMap(symbols, func(sym domain.Symbol) (domain.Symbol, bool) {
		return sym, true
	})

	byID := make(map[domain.Symbol]*domain.HoldingRecord, len(symbols))
	for _, sym := range symbols {
		byID[sym] = &domain.HoldingRecord{Symbol: sym}
	}

	for _, bal := range s.engine.Balances(ctx, account) {
		sym := domain.Symbol(bal.Symbol)
		if !wanted[sym] {
			continue
		}
		rec := byID[sym]
		rec.Liquid = rec.Liquid.Add(bal.Balance.Decimal)
		rec.Staked = rec.Staked.Add(bal.Stake.Decimal)
		rec.DelegatedAway = rec.DelegatedAway.Add(bal.Delegations.Decimal)
	}

	for _, del := range s.engine.DelegationsOut(ctx, account) {
		sym := domain.Symbol(del.Symbol)
		if !wanted[sym] {
			continue
		}
		byID[sym].DelegatedAway = byID[sym].DelegatedAway.Add(del.Quantity.Decimal)
	}

	return lo.Map(symbols, func(sym domain.Symbol, _ int) domain.HoldingRecord {
		return *byID[sym]
	})
}

// HeldSymbols returns every symbol the account has any balance row for,
// regardless of amount. Used when no explicit token list is configured.
func (s *Service) HeldSymbols(ctx context.Context, account string) []domain.Symbol {
	balances := s.engine.Balances(ctx, account)
	symbols := lo.Map(balances, func(bal engine.BalanceRecord, _ int) domain.Symbol {
		return domain.Symbol(bal.Symbol)
	})
	return lo.Uniq(symbols)
}
