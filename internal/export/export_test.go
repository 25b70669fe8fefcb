package export

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/hivefolio/tracker/internal/domain"
)

func testPortfolio() domain.Portfolio {
	dec := func(s string) decimal.Decimal { return domain.SafeParse(s) }
	layer1 := domain.Layer1Line{
		Holdings: domain.Layer1Holdings{LiquidHive: dec("100"), HPOwned: dec("1000")},
	}
	return domain.Portfolio{
		Account:   "alice",
		Timestamp: time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC),
		Prices:    domain.ReferencePrices{HiveUSD: dec("0.5"), HbdUSD: dec("1"), BtcUSD: dec("50000")},
		Tokens: []domain.TokenLine{{
			Holding:   domain.HoldingRecord{Symbol: "LEO", Liquid: dec("100"), Staked: dec("50")},
			PriceHive: dec("2"),
			PriceUSD:  dec("1"),
			Value:     domain.Totals{USD: dec("150"), Hive: dec("300"), BTC: dec("0.003")},
		}},
		Pools: []domain.PoolLine{{
			Pair:            domain.Pair{Base: "SWAP.HIVE", Quote: "LEO"},
			BaseAmount:      dec("100"),
			QuoteAmount:     dec("2000"),
			Shares:          dec("447.21"),
			SharePercentage: dec("10"),
			Value:           domain.Totals{USD: dec("100"), Hive: dec("200"), BTC: dec("0.002")},
		}},
		Layer1: &layer1,
		Total:  domain.Totals{USD: dec("250"), Hive: dec("500"), BTC: dec("0.005")},
	}
}

func TestXLSXWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	w := NewXLSXWriter(path)

	if err := w.Write(context.Background(), testPortfolio()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	for _, name := range []string{"Summary", "Tokens", "Pools"} {
		if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
			t.Errorf("sheet %s missing (idx %d, err %v)", name, idx, err)
		}
	}

	symbol, err := f.GetCellValue("Tokens", "A2")
	if err != nil {
		t.Fatalf("reading token cell: %v", err)
	}
	if symbol != "LEO" {
		t.Errorf("Tokens!A2 = %q, want LEO", symbol)
	}

	pair, err := f.GetCellValue("Pools", "A2")
	if err != nil {
		t.Fatalf("reading pool cell: %v", err)
	}
	if pair != "SWAP.HIVE:LEO" {
		t.Errorf("Pools!A2 = %q, want SWAP.HIVE:LEO", pair)
	}
}

type stubWriter struct {
	err   error
	calls int
}

func (s *stubWriter) Write(_ context.Context, _ domain.Portfolio) error {
	s.calls++
	return s.err
}

func TestServiceContinuesPastFailedWriter(t *testing.T) {
	bad := &stubWriter{err: errors.New("quota exceeded")}
	good := &stubWriter{}
	svc := NewService(bad, good)

	if err := svc.Export(context.Background(), testPortfolio()); err != nil {
		t.Errorf("Export: %v, want success while one writer still works", err)
	}
	if good.calls != 1 {
		t.Errorf("good writer calls = %d, want 1", good.calls)
	}
}

func TestServiceAllWritersFailed(t *testing.T) {
	bad := &stubWriter{err: errors.New("boom")}
	svc := NewService(bad)

	if err := svc.Export(context.Background(), testPortfolio()); err == nil {
		t.Error("expected error when every writer fails")
	}
}
