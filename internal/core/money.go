// Package core holds the engine's domain types and the pure calendar and
// money arithmetic they depend on.
//
// All monetary values are exact decimals (github.com/shopspring/decimal).
// Binary floating point is never used for amounts or ratios.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RatioScale is the number of fractional digits kept when dividing spend by
// budget. Matches the precision the alert threshold is expressed in.
const RatioScale = 4

// ParseAmount converts user input to an exact positive decimal. It accepts
// both dot and comma decimal separators.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// SpendingRatio divides total spend by the budget amount, rounded half-up to
// RatioScale fractional digits. A zero or negative budget yields zero rather
// than a division error; such budgets are rejected at creation time anyway.
func SpendingRatio(spent, budget decimal.Decimal) decimal.Decimal {
	if !budget.IsPositive() {
		return decimal.Zero
	}
	return spent.DivRound(budget, RatioScale)
}

// SumAmounts adds a list of exact decimal amounts.
func SumAmounts(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
