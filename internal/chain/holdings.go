package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hivefolio/tracker/internal/domain"
)

// parseAmount parses a chain asset string such as "123.456 HIVE" into its
// numeric part, ignoring the asset suffix.
func parseAmount(s string) (decimal.Decimal, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return decimal.Zero, fmt.Errorf("empty asset amount")
	}
	d, err := decimal.NewFromString(fields[0])
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse asset amount %q: %w", s, err)
	}
	return d, nil
}

// Holdings fetches and converts the account's base-chain positions. Hive
// Power figures are derived from vesting shares via the global vesting
// fund ratio.
func (c *Client) Holdings(ctx context.Context, account string) (domain.Layer1Holdings, error) {
	var out domain.Layer1Holdings

	acct, err := c.account(ctx, account)
	if err != nil {
		return out, err
	}
	props, err := c.properties(ctx)
	if err != nil {
		return out, err
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"balance", acct.Balance, &out.LiquidHive},
		{"savings_balance", acct.SavingsBalance, &out.SavingsHive},
		{"hbd_balance", acct.HbdBalance, &out.LiquidHBD},
		{"savings_hbd_balance", acct.SavingsHbdBalance, &out.SavingsHBD},
	}
	for _, f := range fields {
		v, err := parseAmount(f.raw)
		if err != nil {
			return out, fmt.Errorf("account %s field %s: %w", account, f.name, err)
		}
		*f.dst = v
	}

	fundHive, err := parseAmount(props.TotalVestingFundHive)
	if err != nil {
		return out, fmt.Errorf("global vesting fund: %w", err)
	}
	fundShares, err := parseAmount(props.TotalVestingShares)
	if err != nil {
		return out, fmt.Errorf("global vesting shares: %w", err)
	}

	vesting := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"vesting_shares", acct.VestingShares, &out.HPOwned},
		{"delegated_vesting_shares", acct.DelegatedVestingShares, &out.HPDelegatedOut},
		{"received_vesting_shares", acct.ReceivedVestingShares, &out.HPDelegatedIn},
	}
	for _, f := range vesting {
		vests, err := parseAmount(f.raw)
		if err != nil {
			return out, fmt.Errorf("account %s field %s: %w", account, f.name, err)
		}
		*f.dst = vestsToHive(vests, fundHive, fundShares)
	}

	return out, nil
}

// vestsToHive converts VESTS to HIVE using the chain-wide fund ratio. A
// zero share supply yields zero instead of dividing by it.
func vestsToHive(vests, fundHive, fundShares decimal.Decimal) decimal.Decimal {
	if !fundShares.IsPositive() {
		return decimal.Zero
	}
	return vests.Mul(fundHive).Div(fundShares)
}
