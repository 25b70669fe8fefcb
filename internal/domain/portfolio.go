package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoldingRecord is the reconciled per-symbol token position of an account.
// All quantities are non-negative.
type HoldingRecord struct {
	Symbol        Symbol          `json:"symbol"`
	Liquid        decimal.Decimal `json:"liquid"`
	Staked        decimal.Decimal `json:"staked"`
	DelegatedAway decimal.Decimal `json:"delegatedAway"`
}

// Total is the full holding: liquid plus staked plus delegated away.
// Recomputed on demand, never stored.
func (h HoldingRecord) Total() decimal.Decimal {
	return h.Liquid.Add(h.Staked).Add(h.DelegatedAway)
}

// PoolPosition is an account's share holding in one diesel pool.
// Shares is always positive; zero-share records are dropped upstream.
type PoolPosition struct {
	Pair   Pair            `json:"pair"`
	PoolID string          `json:"poolId"`
	Shares decimal.Decimal `json:"shares"`
}

// PoolReserves is the reserve state of a diesel pool. TotalShares is always
// positive; a pool reporting zero total shares is treated as unresolved.
type PoolReserves struct {
	Pair        Pair            `json:"pair"`
	BaseSymbol  Symbol          `json:"baseSymbol"`
	QuoteSymbol Symbol          `json:"quoteSymbol"`
	BaseQty     decimal.Decimal `json:"baseQty"`
	QuoteQty    decimal.Decimal `json:"quoteQty"`
	TotalShares decimal.Decimal `json:"totalShares"`
}

// PriceQuote is a resolved market price for a token, denominated in HIVE.
// A zero price means the valuation is unavailable, not that the token is
// worthless.
type PriceQuote struct {
	Symbol    Symbol          `json:"symbol"`
	PriceHive decimal.Decimal `json:"priceHive"`
	Volume24h decimal.Decimal `json:"volume24h"`
}

// Totals is a value expressed in all three units of account.
type Totals struct {
	USD  decimal.Decimal `json:"usd"`
	Hive decimal.Decimal `json:"hive"`
	BTC  decimal.Decimal `json:"btc"`
}

// Add returns the element-wise sum of two totals.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		USD:  t.USD.Add(o.USD),
		Hive: t.Hive.Add(o.Hive),
		BTC:  t.BTC.Add(o.BTC),
	}
}

// TokenLine is one valued token row of the portfolio.
type TokenLine struct {
	Holding      HoldingRecord   `json:"holding"`
	PriceHive    decimal.Decimal `json:"priceHive"`
	PriceUSD     decimal.Decimal `json:"priceUsd"`
	Volume24hUSD decimal.Decimal `json:"volume24hUsd"`
	Value        Totals          `json:"value"`
}

// PoolLine is one valued diesel-pool row of the portfolio.
type PoolLine struct {
	Pair            Pair            `json:"pair"`
	BaseSymbol      Symbol          `json:"baseSymbol"`
	QuoteSymbol     Symbol          `json:"quoteSymbol"`
	BaseAmount      decimal.Decimal `json:"baseAmount"`
	QuoteAmount     decimal.Decimal `json:"quoteAmount"`
	Shares          decimal.Decimal `json:"shares"`
	SharePercentage decimal.Decimal `json:"sharePercentage"`
	Value           Totals          `json:"value"`
}

// Layer1Holdings are the base-chain positions of an account.
type Layer1Holdings struct {
	LiquidHive     decimal.Decimal `json:"liquidHive"`
	SavingsHive    decimal.Decimal `json:"savingsHive"`
	HPOwned        decimal.Decimal `json:"hpOwned"`
	HPDelegatedIn  decimal.Decimal `json:"hpDelegatedIn"`
	HPDelegatedOut decimal.Decimal `json:"hpDelegatedOut"`
	LiquidHBD      decimal.Decimal `json:"liquidHbd"`
	SavingsHBD     decimal.Decimal `json:"savingsHbd"`
}

// EffectiveHP is owned plus delegated-in minus delegated-out Hive Power.
func (h Layer1Holdings) EffectiveHP() decimal.Decimal {
	return h.HPOwned.Add(h.HPDelegatedIn).Sub(h.HPDelegatedOut)
}

// TotalHive is the HIVE-denominated base-chain amount that counts toward
// the portfolio: liquid plus savings plus owned HP.
func (h Layer1Holdings) TotalHive() decimal.Decimal {
	return h.LiquidHive.Add(h.SavingsHive).Add(h.HPOwned)
}

// TotalHBD is liquid plus savings HBD.
func (h Layer1Holdings) TotalHBD() decimal.Decimal {
	return h.LiquidHBD.Add(h.SavingsHBD)
}

// Layer1Line is the valued base-chain section of the portfolio.
type Layer1Line struct {
	Holdings  Layer1Holdings `json:"holdings"`
	HiveValue Totals         `json:"hiveValue"`
	HBDValue  Totals         `json:"hbdValue"`
	Value     Totals         `json:"value"`
}

// ReferencePrices are the external spot prices used for a valuation run.
type ReferencePrices struct {
	HiveUSD decimal.Decimal `json:"hiveUsd"`
	HbdUSD  decimal.Decimal `json:"hbdUsd"`
	BtcUSD  decimal.Decimal `json:"btcUsd"`
}

// Portfolio is a complete valuation of one account at one point in time.
type Portfolio struct {
	Account   string          `json:"account"`
	Timestamp time.Time       `json:"timestamp"`
	Prices    ReferencePrices `json:"prices"`
	Tokens    []TokenLine     `json:"tokens"`
	Pools     []PoolLine      `json:"pools"`
	Layer1    *Layer1Line     `json:"layer1,omitempty"`
	Total     Totals          `json:"total"`
}
