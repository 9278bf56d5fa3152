// Package format renders money, prices and percentages for people to read.
package format

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Money formats a value in the major unit of a currency, rounded to the
// currency's fraction. Currencies go-money does not know are written as a
// plain number followed by the code.
func Money(value decimal.Decimal, currencyCode string) string {
	code := strings.ToUpper(currencyCode)

	if money.GetCurrency(code) == nil {
		return value.StringFixed(2) + " " + code
	}

	currency := money.New(0, code).Currency()

	return currency.Formatter().Format(value.Shift(int32(currency.Fraction)).Round(0).IntPart())
}

// Price formats a unit price. Prices below one unit keep up to eight decimal
// places, since many coins trade for fractions of a cent.
func Price(value decimal.Decimal, currencyCode string) string {
	if value.Abs().GreaterThanOrEqual(one) || value.IsZero() {
		return Money(value, currencyCode)
	}

	code := strings.ToUpper(currencyCode)
	currency := money.GetCurrency(code)

	if currency == nil {
		return value.Round(8).String() + " " + code
	}

	sign := ""

	if value.IsNegative() {
		sign = "-"
	}

	return sign + currency.Grapheme + value.Abs().Round(8).String()
}

// Percentage formats a percentage with a sign and two decimal places.
func Percentage(value decimal.Decimal) string {
	sign := ""

	if !value.IsNegative() {
		sign = "+"
	}

	return sign + value.StringFixed(2) + "%"
}

// Amount formats a coin quantity without trailing zeroes.
func Amount(value decimal.Decimal) string {
	return value.String()
}
