// Package valuation turns holdings, pool positions and prices into valued
// portfolio lines denominated in USD, HIVE and BTC.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/hivefolio/tracker/internal/domain"
)

// Value converts a token quantity into the three reporting denominations.
// priceHive is the token's price in HIVE; hiveUSD and btcUSD are the
// reference fiat prices. A zero btcUSD yields a zero BTC figure instead of
// a division error.
func Value(qty, priceHive, hiveUSD, btcUSD decimal.Decimal) domain.Totals {
	hive := qty.Mul(priceHive)
	usd := hive.Mul(hiveUSD)
	return domain.Totals{
		USD:  usd,
		Hive: hive,
		BTC:  domain.SafeDiv(usd, btcUSD),
	}
}

// TokenLine values one holding record at the given quote. Market volume
// is denominated in HIVE on the exchange, so its USD figure only needs the
// reference price.
func TokenLine(rec domain.HoldingRecord, quote domain.PriceQuote, prices domain.ReferencePrices) domain.TokenLine {
	return domain.TokenLine{
		Holding:      rec,
		PriceHive:    quote.PriceHive,
		PriceUSD:     quote.PriceHive.Mul(prices.HiveUSD),
		Volume24hUSD: quote.Volume24h.Mul(prices.HiveUSD),
		Value:        Value(rec.Total(), quote.PriceHive, prices.HiveUSD, prices.BtcUSD),
	}
}

// PoolLine values a liquidity position against its pool's reserves. The
// position's share ratio determines the underlying token amounts; each
// side is valued at its own market price and the sides are summed.
func PoolLine(pos domain.PoolPosition, res domain.PoolReserves,
	basePrice, quotePrice domain.PriceQuote, prices domain.ReferencePrices) domain.PoolLine {

	ratio := domain.SafeDiv(pos.Shares, res.TotalShares)
	baseAmount := res.BaseQty.Mul(ratio)
	quoteAmount := res.QuoteQty.Mul(ratio)

	value := Value(baseAmount, basePrice.PriceHive, prices.HiveUSD, prices.BtcUSD)
	value = value.Add(Value(quoteAmount, quotePrice.PriceHive, prices.HiveUSD, prices.BtcUSD))

	return domain.PoolLine{
		Pair:            pos.Pair,
		BaseSymbol:      res.BaseSymbol,
		QuoteSymbol:     res.QuoteSymbol,
		BaseAmount:      baseAmount,
		QuoteAmount:     quoteAmount,
		Shares:          pos.Shares,
		SharePercentage: ratio.Mul(decimal.NewFromInt(100)),
		Value:           value,
	}
}

// Layer1Line values base-chain holdings. HIVE amounts are valued directly
// at the HIVE spot price; HBD at its own spot price.
func Layer1Line(h domain.Layer1Holdings, prices domain.ReferencePrices) domain.Layer1Line {
	hiveUSD := h.TotalHive().Mul(prices.HiveUSD)
	hbdUSD := h.TotalHBD().Mul(prices.HbdUSD)

	hiveValue := domain.Totals{
		USD:  hiveUSD,
		Hive: h.TotalHive(),
		BTC:  domain.SafeDiv(hiveUSD, prices.BtcUSD),
	}
	hbdValue := domain.Totals{
		USD:  hbdUSD,
		Hive: domain.SafeDiv(hbdUSD, prices.HiveUSD),
		BTC:  domain.SafeDiv(hbdUSD, prices.BtcUSD),
	}

	return domain.Layer1Line{
		Holdings:  h,
		HiveValue: hiveValue,
		HBDValue:  hbdValue,
		Value:     hiveValue.Add(hbdValue),
	}
}
