// Package export renders a valued portfolio into external report formats:
// an XLSX workbook and a Google Sheets spreadsheet.
package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/hivefolio/tracker/internal/domain"
)

// ReportWriter writes one portfolio valuation to a report destination.
type ReportWriter interface {
	Write(ctx context.Context, p domain.Portfolio) error
}

// Service fans a portfolio out to every configured writer. A writer
// failure is logged and does not stop the remaining writers.
type Service struct {
	writers []ReportWriter
}

// NewService creates an export service over the given writers.
func NewService(writers ...ReportWriter) *Service {
	return &Service{writers: writers}
}

// Export implements worker.AfterSnapshotHook.
func (s *Service) Export(ctx context.Context, p domain.Portfolio) error {
	var failed int
	for _, w := range s.writers {
		if err := w.Write(ctx, p); err != nil {
			slog.Error("report writer failed", "writer", fmt.Sprintf("%T", w), "error", err)
			failed++
		}
	}
	if failed == len(s.writers) && failed > 0 {
		return fmt.Errorf("all %d report writers failed", failed)
	}
	return nil
}

// tokenHeader is the column layout shared by the XLSX and Sheets writers.
var tokenHeader = []any{
	"Symbol", "Liquid", "Staked", "Delegated",
	"Price (HIVE)", "Price (USD)", "Value (HIVE)", "Value (USD)",
}

var poolHeader = []any{
	"Pair", "Base Amount", "Quote Amount", "Shares", "Share %",
	"Value (HIVE)", "Value (USD)",
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func tokenRows(p domain.Portfolio) [][]any {
	rows := [][]any{tokenHeader}
	for _, t := range p.Tokens {
		rows = append(rows, []any{
			string(t.Holding.Symbol),
			toFloat(t.Holding.Liquid),
			toFloat(t.Holding.Staked),
			toFloat(t.Holding.DelegatedAway),
			toFloat(t.PriceHive),
			toFloat(t.PriceUSD),
			toFloat(t.Value.Hive),
			toFloat(t.Value.USD),
		})
	}
	return rows
}

func poolRows(p domain.Portfolio) [][]any {
	rows := [][]any{poolHeader}
	for _, pl := range p.Pools {
		rows = append(rows, []any{
			pl.Pair.String(),
			toFloat(pl.BaseAmount),
			toFloat(pl.QuoteAmount),
			toFloat(pl.Shares),
			toFloat(pl.SharePercentage),
			toFloat(pl.Value.Hive),
			toFloat(pl.Value.USD),
		})
	}
	return rows
}

func summaryRows(p domain.Portfolio) [][]any {
	rows := [][]any{
		{"Account", p.Account},
		{"Timestamp", p.Timestamp.Format("2006-01-02 15:04:05 UTC")},
		{"HIVE/USD", toFloat(p.Prices.HiveUSD)},
		{"HBD/USD", toFloat(p.Prices.HbdUSD)},
		{"BTC/USD", toFloat(p.Prices.BtcUSD)},
		{"Total (USD)", toFloat(p.Total.USD)},
		{"Total (HIVE)", toFloat(p.Total.Hive)},
		{"Total (BTC)", toFloat(p.Total.BTC)},
	}
	if p.Layer1 != nil {
		rows = append(rows,
			[]any{"Layer 1 (HIVE)", toFloat(p.Layer1.Holdings.TotalHive())},
			[]any{"Layer 1 (HBD)", toFloat(p.Layer1.Holdings.TotalHBD())},
		)
	}
	return rows
}
