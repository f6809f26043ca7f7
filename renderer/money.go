package renderer

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money formats amount in the currency's display format, e.g. "$1,000.50".
// Amounts are rounded half away from zero to the currency's minor unit.
// An unknown currency code falls back to two decimals and the code.
func Money(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, currency).Display()
}
