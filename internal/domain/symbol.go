package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Symbol identifies a Hive Engine token, e.g. "LEO" or "SWAP.HIVE".
type Symbol string

// SwapHive is the wrapped reference coin on the token layer. Its price in
// HIVE is 1.0 by definition and is never looked up.
const SwapHive Symbol = "SWAP.HIVE"

const maxSymbolLen = 10

// ErrInvalidSymbol indicates a malformed token symbol.
var ErrInvalidSymbol = errors.New("invalid token symbol")

// ValidateSymbol checks that s is uppercase alphanumeric plus dots, at most
// 10 characters.
func ValidateSymbol(s Symbol) error {
	if s == "" || len(s) > maxSymbolLen {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
	}
	for _, c := range s {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '.' {
			return fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
		}
	}
	return nil
}

// Pair is an ordered token pair. Pools may be registered with the operands
// swapped relative to the caller's pair string, so lookups must try both
// directions.
type Pair struct {
	Base  Symbol `json:"base"`
	Quote Symbol `json:"quote"`
}

// ErrInvalidPair indicates a pair string that is not exactly two
// colon-delimited symbols.
var ErrInvalidPair = errors.New("invalid token pair")

// ParsePair parses a "BASE:QUOTE" pair string.
func ParsePair(s string) (Pair, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidPair, s)
	}
	return Pair{Base: Symbol(parts[0]), Quote: Symbol(parts[1])}, nil
}

// String returns the canonical "BASE:QUOTE" form.
func (p Pair) String() string {
	return string(p.Base) + ":" + string(p.Quote)
}

// Reversed returns the pair with base and quote swapped.
func (p Pair) Reversed() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}
