// Package report turns ledger rows into the summaries, series and message
// texts the bot sends. All money stays in integer cents until formatting.
package report

import (
	"context"
	"fmt"
	"time"

	"grana/internal/core"
	"grana/internal/storage"
)

// DefaultOutlierRatio is the max/median threshold above which a daily series
// is flagged for compressed (log-like) scaling.
const DefaultOutlierRatio = 8.0

// maxCategoryLines caps the per-category breakdown in report texts.
const maxCategoryLines = 8

type (
	// PeriodSummary is one period's expense total with its per-category
	// breakdown (largest first), plus the income total for the same window.
	PeriodSummary struct {
		Start      time.Time
		Total      core.Money
		Count      int
		Income     core.Money
		Categories []storage.CategoryTotal
	}

	// Report is the summary behind /relatorio and the scheduled send:
	// today, the current Monday-start week, and the month balance.
	Report struct {
		GeneratedAt time.Time
		Today       PeriodSummary
		Week        PeriodSummary
		Month       Balance
	}

	// Balance is the current month's income vs expense, behind /saldo.
	Balance struct {
		MonthStart   time.Time
		Expense      core.Money
		ExpenseCount int
		Income       core.Money
		IncomeCount  int
	}

	Engine struct {
		ledger       storage.Ledger
		loc          *time.Location
		outlierRatio float64
	}
)

// Net is income minus expense; negative when the month is in the red.
func (b Balance) Net() core.Money {
	return b.Income.Sub(b.Expense)
}

func NewEngine(ledger storage.Ledger, loc *time.Location, outlierRatio float64) *Engine {
	if outlierRatio <= 0 {
		outlierRatio = DefaultOutlierRatio
	}
	return &Engine{
		ledger:       ledger,
		loc:          loc,
		outlierRatio: outlierRatio,
	}
}

// BuildReport assembles today's and this week's summaries plus the month
// balance, as of the given instant. Periods are computed in the engine's
// location, so "today" is the user's calendar day, not the UTC one.
func (e *Engine) BuildReport(ctx context.Context, userID int64, asOf time.Time) (Report, error) {
	now := asOf.In(e.loc)

	dayStart, dayEnd := core.DayRange(now)
	weekStart, weekEnd := core.WeekRange(now)

	today, err := e.summarize(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return Report{}, fmt.Errorf("summarize day: %w", err)
	}
	week, err := e.summarize(ctx, userID, weekStart, weekEnd)
	if err != nil {
		return Report{}, fmt.Errorf("summarize week: %w", err)
	}
	month, err := e.BuildBalance(ctx, userID, now)
	if err != nil {
		return Report{}, fmt.Errorf("month balance: %w", err)
	}

	return Report{GeneratedAt: now, Today: today, Week: week, Month: month}, nil
}

func (e *Engine) summarize(ctx context.Context, userID int64, start, end time.Time) (PeriodSummary, error) {
	total, err := e.ledger.SumRange(ctx, userID, core.KindExpense, start, end)
	if err != nil {
		return PeriodSummary{}, err
	}
	cats, err := e.ledger.CategoryTotals(ctx, userID, core.KindExpense, start, end)
	if err != nil {
		return PeriodSummary{}, err
	}
	income, err := e.ledger.SumRange(ctx, userID, core.KindIncome, start, end)
	if err != nil {
		return PeriodSummary{}, err
	}

	s := PeriodSummary{Start: start, Total: total, Income: income, Categories: cats}
	for _, c := range cats {
		s.Count += c.Count
	}
	if len(s.Categories) > maxCategoryLines {
		s.Categories = s.Categories[:maxCategoryLines]
	}
	return s, nil
}

// BuildBalance assembles income vs expense totals for the calendar month
// containing asOf.
func (e *Engine) BuildBalance(ctx context.Context, userID int64, asOf time.Time) (Balance, error) {
	start, end := core.MonthRange(asOf.In(e.loc))

	b := Balance{MonthStart: start}
	for _, kind := range []core.Kind{core.KindExpense, core.KindIncome} {
		total, err := e.ledger.SumRange(ctx, userID, kind, start, end)
		if err != nil {
			return Balance{}, fmt.Errorf("month total %s: %w", kind, err)
		}
		cats, err := e.ledger.CategoryTotals(ctx, userID, kind, start, end)
		if err != nil {
			return Balance{}, fmt.Errorf("month breakdown %s: %w", kind, err)
		}
		var count int
		for _, c := range cats {
			count += c.Count
		}
		if kind == core.KindExpense {
			b.Expense, b.ExpenseCount = total, count
		} else {
			b.Income, b.IncomeCount = total, count
		}
	}
	return b, nil
}
