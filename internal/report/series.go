package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"grana/internal/core"
	"grana/internal/storage"
)

// Scale is a rendering hint for chart axes.
type Scale string

const (
	// ScaleLinear is the default axis.
	ScaleLinear Scale = "linear"

	// ScaleCompressed asks the renderer for a log-like axis so a single
	// outlier day does not flatten the rest of the series.
	ScaleCompressed Scale = "compressed"
)

type (
	// DailySeries is a zero-filled, day-aligned series for one kind.
	DailySeries struct {
		Kind   core.Kind
		Days   []time.Time
		Values []core.Money
		Scale  Scale
	}

	// WeeklySeries pairs expense and income per Monday-start week,
	// zero-filled across the requested span.
	WeeklySeries struct {
		Weeks    []time.Time
		Expenses []core.Money
		Incomes  []core.Money
	}
)

// DailySeries builds the last `days` calendar days (ending on asOf's day)
// for one kind. Every day is present: days without records carry zero, so
// series length always equals the requested span.
func (e *Engine) DailySeries(ctx context.Context, userID int64, kind core.Kind, days int, asOf time.Time) (DailySeries, error) {
	_, end := core.DayRange(asOf.In(e.loc))
	start := end.AddDate(0, 0, -days)

	totals, err := e.ledger.DailyTotals(ctx, userID, kind, start, end)
	if err != nil {
		return DailySeries{}, fmt.Errorf("daily totals: %w", err)
	}

	byDay := make(map[time.Time]core.Money, len(totals))
	for _, t := range totals {
		byDay[t.Date] = t.Total
	}

	s := DailySeries{
		Kind:   kind,
		Days:   make([]time.Time, 0, days),
		Values: make([]core.Money, 0, days),
	}
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		s.Days = append(s.Days, day)
		s.Values = append(s.Values, byDay[day])
	}
	s.Scale = scaleFor(s.Values, e.outlierRatio)
	return s, nil
}

// WeeklySeries builds the last `weeks` Monday-start weeks including the one
// containing asOf, zero-filled.
func (e *Engine) WeeklySeries(ctx context.Context, userID int64, weeks int, asOf time.Time) (WeeklySeries, error) {
	_, end := core.WeekRange(asOf.In(e.loc))
	start := end.AddDate(0, 0, -7*weeks)

	totals, err := e.ledger.WeeklyTotals(ctx, userID, start, end)
	if err != nil {
		return WeeklySeries{}, fmt.Errorf("weekly totals: %w", err)
	}

	byWeek := make(map[time.Time]storage.WeekTotal, len(totals))
	for _, t := range totals {
		byWeek[t.WeekStart] = t
	}

	s := WeeklySeries{
		Weeks:    make([]time.Time, 0, weeks),
		Expenses: make([]core.Money, 0, weeks),
		Incomes:  make([]core.Money, 0, weeks),
	}
	for week := start; week.Before(end); week = week.AddDate(0, 0, 7) {
		t := byWeek[week]
		s.Weeks = append(s.Weeks, week)
		s.Expenses = append(s.Expenses, t.Expense)
		s.Incomes = append(s.Incomes, t.Income)
	}
	return s, nil
}

// scaleFor flags a series as compressed when the largest value dwarfs the
// median of the non-zero values by at least ratio. Zero days are excluded
// from the median so sparse series are not misread as outlier-heavy.
func scaleFor(values []core.Money, ratio float64) Scale {
	var nonZero []int64
	var max int64
	for _, v := range values {
		if v.Cents > max {
			max = v.Cents
		}
		if v.Cents != 0 {
			nonZero = append(nonZero, v.Cents)
		}
	}
	if len(nonZero) == 0 {
		return ScaleLinear
	}

	sort.Slice(nonZero, func(i, j int) bool { return nonZero[i] < nonZero[j] })
	var median float64
	n := len(nonZero)
	if n%2 == 1 {
		median = float64(nonZero[n/2])
	} else {
		median = float64(nonZero[n/2-1]+nonZero[n/2]) / 2
	}
	if median == 0 {
		return ScaleLinear
	}
	if float64(max)/median >= ratio {
		return ScaleCompressed
	}
	return ScaleLinear
}
