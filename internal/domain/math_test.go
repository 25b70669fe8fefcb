package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "12.5", "12.5"},
		{"float", 3.25, "3.25"},
		{"nil", nil, "0"},
		{"malformed string", "abc", "0"},
		{"empty string", "", "0"},
		{"bool", true, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseQuantity(tt.in)
			if got.String() != tt.want {
				t.Errorf("ParseQuantity(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestSafeDiv(t *testing.T) {
	if got := SafeDiv(decimal.NewFromInt(10), decimal.NewFromInt(4)); got.String() != "2.5" {
		t.Errorf("SafeDiv(10, 4) = %s, want 2.5", got)
	}
	if got := SafeDiv(decimal.NewFromInt(10), decimal.Zero); !got.IsZero() {
		t.Errorf("SafeDiv(10, 0) = %s, want 0", got)
	}
}

func TestQuantityUnmarshal(t *testing.T) {
	var rec struct {
		Balance Quantity `json:"balance"`
		Stake   Quantity `json:"stake"`
	}
	// balance is a string, stake a number; both must parse
	if err := json.Unmarshal([]byte(`{"balance":"100.5","stake":2}`), &rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Balance.String() != "100.5" {
		t.Errorf("balance = %s, want 100.5", rec.Balance)
	}
	if rec.Stake.String() != "2" {
		t.Errorf("stake = %s, want 2", rec.Stake)
	}

	// malformed field becomes zero without failing the record
	if err := json.Unmarshal([]byte(`{"balance":{"x":1}}`), &rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.Balance.IsZero() {
		t.Errorf("malformed balance = %s, want 0", rec.Balance)
	}
}

func TestHoldingRecordTotal(t *testing.T) {
	h := HoldingRecord{
		Symbol:        "LEO",
		Liquid:        decimal.NewFromInt(100),
		Staked:        decimal.NewFromInt(50),
		DelegatedAway: decimal.NewFromInt(10),
	}
	if got := h.Total(); got.String() != "160" {
		t.Errorf("Total() = %s, want 160", got)
	}
}
