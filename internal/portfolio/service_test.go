package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hivefolio/tracker/internal/domain"
)

func dec(s string) decimal.Decimal {
	return domain.SafeParse(s)
}

type fakeHoldings struct {
	records []domain.HoldingRecord
	held    []domain.Symbol

	requested []domain.Symbol
}

func (f *fakeHoldings) TokenHoldings(_ context.Context, _ string, symbols []domain.Symbol) []domain.HoldingRecord {
	f.requested = symbols
	return f.records
}

func (f *fakeHoldings) HeldSymbols(_ context.Context, _ string) []domain.Symbol {
	return f.held
}

type fakeMarket struct {
	quotes map[domain.Symbol]domain.PriceQuote
	resets int
}

func (f *fakeMarket) ResolvePrice(_ context.Context, sym domain.Symbol) domain.PriceQuote {
	if sym == domain.SwapHive {
		return domain.PriceQuote{Symbol: sym, PriceHive: dec("1")}
	}
	return f.quotes[sym]
}

func (f *fakeMarket) Reset() { f.resets++ }

type fakePools struct {
	positions []domain.PoolPosition
	reserves  map[string]domain.PoolReserves
	resets    int
}

func (f *fakePools) Positions(_ context.Context, _ string) []domain.PoolPosition {
	return f.positions
}

func (f *fakePools) ResolvePool(_ context.Context, pair domain.Pair) (domain.PoolReserves, bool) {
	res, ok := f.reserves[pair.String()]
	return res, ok
}

func (f *fakePools) Reset() { f.resets++ }

type fakeChain struct {
	holdings domain.Layer1Holdings
	err      error
}

func (f *fakeChain) Holdings(_ context.Context, _ string) (domain.Layer1Holdings, error) {
	return f.holdings, f.err
}

type fakePricer struct{}

func (fakePricer) ReferencePrices(_ context.Context) domain.ReferencePrices {
	return domain.ReferencePrices{HiveUSD: dec("0.5"), HbdUSD: dec("1"), BtcUSD: dec("50000")}
}

func TestBuildTokensOnly(t *testing.T) {
	holdings := &fakeHoldings{records: []domain.HoldingRecord{
		{Symbol: "LEO", Liquid: dec("100"), Staked: dec("50"), DelegatedAway: dec("10")},
	}}
	market := &fakeMarket{quotes: map[domain.Symbol]domain.PriceQuote{
		"LEO": {Symbol: "LEO", PriceHive: dec("2")},
	}}
	svc := NewService(holdings, market, &fakePools{}, nil, fakePricer{})

	p := svc.Build(context.Background(), "alice", []domain.Symbol{"LEO"}, false)

	if len(p.Tokens) != 1 || len(p.Pools) != 0 || p.Layer1 != nil {
		t.Fatalf("portfolio shape = %d tokens, %d pools, layer1 %v", len(p.Tokens), len(p.Pools), p.Layer1)
	}
	// 160 LEO * 2 HIVE * 0.5 USD = 160 USD.
	if p.Total.USD.String() != "160" {
		t.Errorf("total USD = %s, want 160", p.Total.USD)
	}
	if p.Total.BTC.String() != "0.0032" {
		t.Errorf("total BTC = %s, want 0.0032", p.Total.BTC)
	}
}

func TestBuildAugmentsSymbolsFromPools(t *testing.T) {
	holdings := &fakeHoldings{}
	pools := &fakePools{
		positions: []domain.PoolPosition{{
			Pair:   domain.Pair{Base: "SWAP.HIVE", Quote: "LEO"},
			Shares: dec("447.21"),
		}},
		reserves: map[string]domain.PoolReserves{
			"SWAP.HIVE:LEO": {
				Pair:        domain.Pair{Base: "SWAP.HIVE", Quote: "LEO"},
				BaseSymbol:  "SWAP.HIVE",
				QuoteSymbol: "LEO",
				BaseQty:     dec("1000"),
				QuoteQty:    dec("20000"),
				TotalShares: dec("4472.1"),
			},
		},
	}
	market := &fakeMarket{quotes: map[domain.Symbol]domain.PriceQuote{
		"LEO": {Symbol: "LEO", PriceHive: dec("0.05")},
	}}
	svc := NewService(holdings, market, pools, nil, fakePricer{})

	p := svc.Build(context.Background(), "alice", []domain.Symbol{"SPS"}, false)

	want := map[domain.Symbol]bool{"SPS": true, "SWAP.HIVE": true, "LEO": true}
	if len(holdings.requested) != len(want) {
		t.Errorf("requested symbols = %v, want SPS plus both pool tokens", holdings.requested)
	}
	for _, sym := range holdings.requested {
		if !want[sym] {
			t.Errorf("unexpected symbol %s requested", sym)
		}
	}

	if len(p.Pools) != 1 {
		t.Fatalf("pools = %d, want 1", len(p.Pools))
	}
	// 10% of the pool: 100 SWAP.HIVE + 2000 LEO * 0.05 = 200 HIVE.
	if p.Pools[0].Value.Hive.String() != "200" {
		t.Errorf("pool value = %s HIVE, want 200", p.Pools[0].Value.Hive)
	}
}

func TestBuildSkipsUnresolvablePool(t *testing.T) {
	pools := &fakePools{
		positions: []domain.PoolPosition{{
			Pair:   domain.Pair{Base: "SWAP.HIVE", Quote: "GONE"},
			Shares: dec("5"),
		}},
	}
	svc := NewService(&fakeHoldings{}, &fakeMarket{}, pools, nil, fakePricer{})

	p := svc.Build(context.Background(), "alice", nil, false)
	if len(p.Pools) != 0 {
		t.Errorf("pools = %d, want 0 when reserves cannot be resolved", len(p.Pools))
	}
	if !p.Total.USD.IsZero() {
		t.Errorf("total = %s, want 0", p.Total.USD)
	}
}

func TestBuildIncludesLayer1(t *testing.T) {
	chain := &fakeChain{holdings: domain.Layer1Holdings{
		LiquidHive: dec("100"), HPOwned: dec("1000"), LiquidHBD: dec("50"),
	}}
	svc := NewService(&fakeHoldings{}, &fakeMarket{}, &fakePools{}, chain, fakePricer{})

	p := svc.Build(context.Background(), "alice", nil, true)
	if p.Layer1 == nil {
		t.Fatal("layer1 section missing")
	}
	// 1100 HIVE * 0.5 + 50 HBD * 1 = 600 USD.
	if p.Total.USD.String() != "600" {
		t.Errorf("total USD = %s, want 600", p.Total.USD)
	}
}

func TestBuildResetsResolversEachRun(t *testing.T) {
	market := &fakeMarket{}
	pools := &fakePools{}
	svc := NewService(&fakeHoldings{}, market, pools, nil, fakePricer{})

	svc.Build(context.Background(), "alice", nil, false)
	svc.Build(context.Background(), "alice", nil, false)

	if market.resets != 2 || pools.resets != 2 {
		t.Errorf("resets = %d/%d, want 2/2 (one per run)", market.resets, pools.resets)
	}
}

func TestBuildChainFailureDegrades(t *testing.T) {
	chain := &fakeChain{err: errors.New("all endpoints down")}
	holdings := &fakeHoldings{records: []domain.HoldingRecord{
		{Symbol: "LEO", Liquid: dec("10")},
	}}
	market := &fakeMarket{quotes: map[domain.Symbol]domain.PriceQuote{
		"LEO": {Symbol: "LEO", PriceHive: dec("1")},
	}}
	svc := NewService(holdings, market, &fakePools{}, chain, fakePricer{})

	p := svc.Build(context.Background(), "alice", []domain.Symbol{"LEO"}, true)
	if p.Layer1 != nil {
		t.Error("layer1 section present despite chain failure")
	}
	if len(p.Tokens) != 1 {
		t.Errorf("tokens = %d, want 1 (report degrades, not fails)", len(p.Tokens))
	}
}
