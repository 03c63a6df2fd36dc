package core

import (
	"errors"
	"time"
	"unicode/utf8"
)

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

const (
	// CurrencyBRL is the only supported currency.
	CurrencyBRL = "BRL"

	// CategoryFallback absorbs anything the classifier invents.
	CategoryFallback = "outros"

	// MaxTextLength bounds inbound messages before they reach the model.
	MaxTextLength = 500

	// MaxAmountCents is R$ 1.000.000,00. Anything above is treated as
	// fat-finger or adversarial input.
	MaxAmountCents int64 = 100_000_000
)

type (
	// Kind discriminates expense and income entries.
	Kind string

	// Candidate is an unconfirmed classification result. It is never
	// persisted directly: it must pass Validate and then be explicitly
	// confirmed before it becomes an Entry.
	Candidate struct {
		RawText     string
		Amount      Money
		Currency    string
		Category    string
		Description string
		Confidence  float64
		Kind        Kind
	}

	// Entry is a confirmed ledger record. ChatID is the destination for
	// automated delivery; zero means "report-only, no auto-send".
	Entry struct {
		ID          int64
		CreatedAt   time.Time
		UserID      int64
		ChatID      int64
		RawText     string
		Amount      Money
		Currency    string
		Category    string
		Description string
		Confidence  float64
		Kind        Kind
	}

	// ActiveUser is a distinct ledger user plus the last chat the user
	// wrote from, used by the scheduled report fan-out.
	ActiveUser struct {
		UserID int64
		ChatID int64
	}
)

var (
	ErrTextTooLong      = errors.New("text too long")
	ErrAmountOutOfRange = errors.New("amount out of range")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrInvalidKind      = errors.New("invalid kind")
)

// Categories is the closed category set the classifier is instructed to use.
var Categories = []string{
	"alimentacao",
	"transporte",
	"saude",
	"lazer",
	"casa",
	"salario",
	"freelance",
	"investimento",
	"outros",
}

// CategoryEmoji maps each known category to its reply emoji.
var CategoryEmoji = map[string]string{
	"alimentacao":  "🍔",
	"transporte":   "🚗",
	"saude":        "💊",
	"lazer":        "🎮",
	"casa":         "🏠",
	"salario":      "💼",
	"freelance":    "💻",
	"investimento": "📈",
	"outros":       "📦",
}

// KnownCategory reports whether cat is part of the closed set.
func KnownCategory(cat string) bool {
	for _, c := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}

func (k Kind) Valid() bool {
	return k == KindExpense || k == KindIncome
}

// Normalize coerces model output into the closed vocabulary: unknown
// categories fall back to "outros", unknown kinds default to expense (the
// more common case), currency is pinned to BRL.
func (c *Candidate) Normalize() {
	if !KnownCategory(c.Category) {
		c.Category = CategoryFallback
	}
	if !c.Kind.Valid() {
		c.Kind = KindExpense
	}
	c.Currency = CurrencyBRL
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
}

// Validate enforces the business-rule bounds independent of whatever the
// model produced. Pure: no I/O, deterministic.
func (c Candidate) Validate() error {
	if utf8.RuneCountInString(c.RawText) > MaxTextLength {
		return ErrTextTooLong
	}
	if c.Amount.Cents <= 0 || c.Amount.Cents > MaxAmountCents {
		return ErrAmountOutOfRange
	}
	if c.Currency != CurrencyBRL {
		return ErrInvalidCurrency
	}
	if !c.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}
