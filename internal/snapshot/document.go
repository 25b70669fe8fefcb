package snapshot

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hivefolio/tracker/internal/domain"
)

// Document is the archived form of one portfolio valuation. The layout is
// stable across releases so that historical files keep parsing.
type Document struct {
	Metadata Metadata     `json:"metadata"`
	Summary  Summary      `json:"summary"`
	Tokens   []TokenEntry `json:"tokens"`
	Pools    []PoolEntry  `json:"diesel_pools"`
	Layer1   *Layer1Entry `json:"layer1,omitempty"`
}

// Metadata identifies the snapshot run.
type Metadata struct {
	Account   string    `json:"account"`
	Timestamp time.Time `json:"timestamp"`
	HiveUSD   string    `json:"hive_usd"`
	HbdUSD    string    `json:"hbd_usd"`
	BtcUSD    string    `json:"btc_usd"`
}

// Summary carries the portfolio totals in all three denominations.
type Summary struct {
	TotalUSD  string `json:"total_usd"`
	TotalHive string `json:"total_hive"`
	TotalBTC  string `json:"total_btc"`
}

// TokenEntry is one archived token row.
type TokenEntry struct {
	Symbol    string `json:"symbol"`
	Liquid    string `json:"liquid"`
	Staked    string `json:"staked"`
	Delegated string `json:"delegated"`
	PriceHive string `json:"price_hive"`
	PriceUSD  string `json:"price_usd"`
	ValueUSD  string `json:"value_usd"`
	ValueHive string `json:"value_hive"`
}

// PoolEntry is one archived diesel pool row.
type PoolEntry struct {
	Pair         string `json:"pair"`
	BaseSymbol   string `json:"base_symbol"`
	QuoteSymbol  string `json:"quote_symbol"`
	BaseAmount   string `json:"base_amount"`
	QuoteAmount  string `json:"quote_amount"`
	Shares       string `json:"shares"`
	SharePercent string `json:"share_percent"`
	ValueUSD     string `json:"value_usd"`
	ValueHive    string `json:"value_hive"`
}

// Layer1Entry is the archived base-chain section.
type Layer1Entry struct {
	LiquidHive  string `json:"liquid_hive"`
	SavingsHive string `json:"savings_hive"`
	HPOwned     string `json:"hp_owned"`
	EffectiveHP string `json:"effective_hp"`
	LiquidHBD   string `json:"liquid_hbd"`
	SavingsHBD  string `json:"savings_hbd"`
	ValueUSD    string `json:"value_usd"`
	ValueHive   string `json:"value_hive"`
}

// fixed render precision for archived amounts.
const docPrecision = 8

func str(d decimal.Decimal) string {
	return d.Round(docPrecision).String()
}

// NewDocument converts a portfolio into its archive form. Decimal values
// are rendered as strings so precision survives any JSON reader.
func NewDocument(p domain.Portfolio) Document {
	doc := Document{
		Metadata: Metadata{
			Account:   p.Account,
			Timestamp: p.Timestamp,
			HiveUSD:   str(p.Prices.HiveUSD),
			HbdUSD:    str(p.Prices.HbdUSD),
			BtcUSD:    str(p.Prices.BtcUSD),
		},
		Summary: Summary{
			TotalUSD:  str(p.Total.USD),
			TotalHive: str(p.Total.Hive),
			TotalBTC:  str(p.Total.BTC),
		},
		Tokens: make([]TokenEntry, 0, len(p.Tokens)),
		Pools:  make([]PoolEntry, 0, len(p.Pools)),
	}

	for _, t := range p.Tokens {
		doc.Tokens = append(doc.Tokens, TokenEntry{
			Symbol:    string(t.Holding.Symbol),
			Liquid:    str(t.Holding.Liquid),
			Staked:    str(t.Holding.Staked),
			Delegated: str(t.Holding.DelegatedAway),
			PriceHive: str(t.PriceHive),
			PriceUSD:  str(t.PriceUSD),
			ValueUSD:  str(t.Value.USD),
			ValueHive: str(t.Value.Hive),
		})
	}

	for _, pl := range p.Pools {
		doc.Pools = append(doc.Pools, PoolEntry{
			Pair:         pl.Pair.String(),
			BaseSymbol:   string(pl.BaseSymbol),
			QuoteSymbol:  string(pl.QuoteSymbol),
			BaseAmount:   str(pl.BaseAmount),
			QuoteAmount:  str(pl.QuoteAmount),
			Shares:       str(pl.Shares),
			SharePercent: str(pl.SharePercentage),
			ValueUSD:     str(pl.Value.USD),
			ValueHive:    str(pl.Value.Hive),
		})
	}

	if p.Layer1 != nil {
		doc.Layer1 = &Layer1Entry{
			LiquidHive:  str(p.Layer1.Holdings.LiquidHive),
			SavingsHive: str(p.Layer1.Holdings.SavingsHive),
			HPOwned:     str(p.Layer1.Holdings.HPOwned),
			EffectiveHP: str(p.Layer1.Holdings.EffectiveHP()),
			LiquidHBD:   str(p.Layer1.Holdings.LiquidHBD),
			SavingsHBD:  str(p.Layer1.Holdings.SavingsHBD),
			ValueUSD:    str(p.Layer1.Value.USD),
			ValueHive:   str(p.Layer1.Value.Hive),
		}
	}

	return doc
}
