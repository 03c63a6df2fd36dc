// Package core holds the domain types shared by the ingestion pipeline and
// the report engine: entries, candidates, money and period arithmetic.
//
// Monetary values are kept as integer cents so that sums stay exact; the
// decimal package is used only at the edges, to coerce model output and to
// format replies.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a positive or negative amount of BRL in integer cents.
type Money struct {
	Cents int64
}

// MoneyFromDecimal converts a decimal amount of reais into cents with
// half-up rounding on the third decimal place.
//
// Examples:
//
//	MoneyFromDecimal(decimal.NewFromFloat(12.34))  -> 1234 cents
//	MoneyFromDecimal(decimal.NewFromFloat(12.345)) -> 1235 cents
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}

// Decimal returns the amount in reais as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

func (m Money) IsZero() bool     { return m.Cents == 0 }
func (m Money) IsNegative() bool { return m.Cents < 0 }

// Abs returns the magnitude of the amount.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// FormatBRL renders the amount Brazilian style: "R$ 1.234,56".
// Negative amounts render as "-R$ 1.234,56".
func (m Money) FormatBRL() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	b.WriteString(sign)
	b.WriteString("R$ ")
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))
	return b.String()
}
