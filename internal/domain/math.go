package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ParseQuantity parses a loosely typed numeric field from a provider record.
// Provider tables return quantities as strings, JSON numbers or nothing at
// all; absent or malformed values become zero so downstream components never
// see bad input.
func ParseQuantity(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case string:
		return SafeParse(x)
	case float64:
		return decimal.NewFromFloat(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case json.Number:
		return SafeParse(x.String())
	default:
		return decimal.Zero
	}
}

// SafeParse parses a string into a decimal, returning zero for invalid or
// empty input.
func SafeParse(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SafeDiv divides a by b, returning zero when b is zero. Never produces
// NaN or infinity.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// Quantity is a decimal that unmarshals defensively from JSON: strings,
// numbers and null are all accepted, anything malformed becomes zero.
type Quantity struct {
	decimal.Decimal
}

// UnmarshalJSON implements json.Unmarshaler.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		q.Decimal = decimal.Zero
		return nil
	}
	q.Decimal = ParseQuantity(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return q.Decimal.MarshalJSON()
}
