package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"grana/internal/core"
	"grana/internal/storage"
)

func testEngine(t *testing.T, ledger storage.Ledger) *Engine {
	t.Helper()
	loc, err := time.LoadLocation(core.DefaultTimezone)
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return NewEngine(ledger, loc, DefaultOutlierRatio)
}

func insert(t *testing.T, ledger storage.Ledger, userID int64, kind core.Kind, category string, cents int64, at time.Time) {
	t.Helper()
	_, err := ledger.Insert(context.Background(), core.Entry{
		CreatedAt: at,
		UserID:    userID,
		RawText:   "x",
		Amount:    core.Money{Cents: cents},
		Currency:  core.CurrencyBRL,
		Category:  category,
		Kind:      kind,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

func TestBuildReport(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	loc, _ := time.LoadLocation(core.DefaultTimezone)

	// Wednesday 2026-03-11.
	now := time.Date(2026, 3, 11, 18, 0, 0, 0, loc)
	e := testEngine(t, ledger)

	insert(t, ledger, 1, core.KindExpense, "alimentacao", 3500, now.Add(-2*time.Hour))
	insert(t, ledger, 1, core.KindExpense, "transporte", 1500, now.Add(-time.Hour))
	// Monday of the same week, outside today.
	insert(t, ledger, 1, core.KindExpense, "casa", 10000, time.Date(2026, 3, 9, 10, 0, 0, 0, loc))
	// Previous week, inside the month, outside both windows.
	insert(t, ledger, 1, core.KindExpense, "lazer", 99999, time.Date(2026, 3, 6, 10, 0, 0, 0, loc))
	// Income never counts toward the expense totals.
	insert(t, ledger, 1, core.KindIncome, "salario", 500000, now.Add(-time.Hour))

	r, err := e.BuildReport(context.Background(), 1, now)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}

	if r.Today.Total.Cents != 5000 || r.Today.Count != 2 {
		t.Errorf("today = %d cents / %d, want 5000 / 2", r.Today.Total.Cents, r.Today.Count)
	}
	if r.Today.Income.Cents != 500000 {
		t.Errorf("today income = %d, want 500000", r.Today.Income.Cents)
	}
	if r.Week.Total.Cents != 15000 || r.Week.Count != 3 {
		t.Errorf("week = %d cents / %d, want 15000 / 3", r.Week.Total.Cents, r.Week.Count)
	}
	if r.Week.Income.Cents != 500000 {
		t.Errorf("week income = %d, want 500000", r.Week.Income.Cents)
	}
	wantWeekStart := time.Date(2026, 3, 9, 0, 0, 0, 0, loc)
	if !r.Week.Start.Equal(wantWeekStart) {
		t.Errorf("week start = %v, want %v", r.Week.Start, wantWeekStart)
	}
	if len(r.Today.Categories) != 2 || r.Today.Categories[0].Category != "alimentacao" {
		t.Errorf("today categories = %+v, want alimentacao first", r.Today.Categories)
	}
	if r.Month.Expense.Cents != 114999 || r.Month.Income.Cents != 500000 {
		t.Errorf("month = %d expense / %d income, want 114999 / 500000",
			r.Month.Expense.Cents, r.Month.Income.Cents)
	}
}

func TestBuildReportShowsIncomeWithoutExpenses(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	loc, _ := time.LoadLocation(core.DefaultTimezone)

	now := time.Date(2026, 3, 11, 18, 0, 0, 0, loc)
	e := testEngine(t, ledger)

	// A lone income entry today must still surface in the report.
	insert(t, ledger, 1, core.KindIncome, "salario", 300000, now.Add(-time.Hour))

	r, err := e.BuildReport(context.Background(), 1, now)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if r.Today.Income.Cents != 300000 {
		t.Errorf("today income = %d, want 300000", r.Today.Income.Cents)
	}
	if r.Month.Net().Cents != 300000 {
		t.Errorf("month net = %d, want 300000", r.Month.Net().Cents)
	}

	text := FormatReport(r)
	for _, want := range []string{
		"🟢 Ganhos: <b>R$ 3.000,00</b>",
		"📆 <b>Mês</b>",
		"🟢 Saldo: <b>R$ 3.000,00</b> positivo",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report text missing %q:\n%s", want, text)
		}
	}
}

func TestBuildBalance(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	loc, _ := time.LoadLocation(core.DefaultTimezone)

	now := time.Date(2026, 3, 11, 18, 0, 0, 0, loc)
	e := testEngine(t, ledger)

	insert(t, ledger, 1, core.KindExpense, "casa", 120000, now.Add(-48*time.Hour))
	insert(t, ledger, 1, core.KindExpense, "alimentacao", 30000, now.Add(-time.Hour))
	insert(t, ledger, 1, core.KindIncome, "salario", 500000, now.Add(-72*time.Hour))
	// Previous month.
	insert(t, ledger, 1, core.KindExpense, "lazer", 999999, time.Date(2026, 2, 20, 10, 0, 0, 0, loc))

	b, err := e.BuildBalance(context.Background(), 1, now)
	if err != nil {
		t.Fatalf("BuildBalance: %v", err)
	}
	if b.Expense.Cents != 150000 || b.ExpenseCount != 2 {
		t.Errorf("expense = %d / %d, want 150000 / 2", b.Expense.Cents, b.ExpenseCount)
	}
	if b.Income.Cents != 500000 || b.IncomeCount != 1 {
		t.Errorf("income = %d / %d, want 500000 / 1", b.Income.Cents, b.IncomeCount)
	}
	if b.Net().Cents != 350000 {
		t.Errorf("net = %d, want 350000", b.Net().Cents)
	}
}

func TestDailySeriesZeroFilled(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	loc, _ := time.LoadLocation(core.DefaultTimezone)

	now := time.Date(2026, 3, 11, 18, 0, 0, 0, loc)
	e := testEngine(t, ledger)

	insert(t, ledger, 1, core.KindExpense, "alimentacao", 2000, now.Add(-time.Hour))
	insert(t, ledger, 1, core.KindExpense, "transporte", 1000, now.AddDate(0, 0, -3))

	s, err := e.DailySeries(context.Background(), 1, core.KindExpense, 30, now)
	if err != nil {
		t.Fatalf("DailySeries: %v", err)
	}
	if len(s.Days) != 30 || len(s.Values) != 30 {
		t.Fatalf("lengths = %d/%d, want 30/30", len(s.Days), len(s.Values))
	}
	if got := s.Values[29].Cents; got != 2000 {
		t.Errorf("today = %d, want 2000", got)
	}
	if got := s.Values[26].Cents; got != 1000 {
		t.Errorf("three days ago = %d, want 1000", got)
	}
	var zeros int
	for _, v := range s.Values {
		if v.IsZero() {
			zeros++
		}
	}
	if zeros != 28 {
		t.Errorf("zero days = %d, want 28", zeros)
	}
}

func TestScaleFor(t *testing.T) {
	money := func(cents ...int64) []core.Money {
		out := make([]core.Money, len(cents))
		for i, c := range cents {
			out[i] = core.Money{Cents: c}
		}
		return out
	}

	tests := []struct {
		name   string
		values []core.Money
		want   Scale
	}{
		{"empty", nil, ScaleLinear},
		{"all zero", money(0, 0, 0), ScaleLinear},
		{"uniform", money(1000, 1200, 900), ScaleLinear},
		{"outlier dominates", money(1000, 1000, 1000, 1000, 1000, 1000, 100000), ScaleCompressed},
		{"just below threshold", money(1000, 1000, 1000, 7999), ScaleLinear},
		{"exactly at threshold", money(1000, 1000, 1000, 8000), ScaleCompressed},
		{"zeros excluded from median", money(0, 0, 0, 0, 1000, 1000, 100000), ScaleCompressed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scaleFor(tt.values, DefaultOutlierRatio); got != tt.want {
				t.Errorf("scaleFor = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWeeklySeriesZeroFilled(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	loc, _ := time.LoadLocation(core.DefaultTimezone)

	now := time.Date(2026, 3, 11, 18, 0, 0, 0, loc)
	e := testEngine(t, ledger)

	insert(t, ledger, 1, core.KindExpense, "casa", 5000, now.Add(-time.Hour))
	insert(t, ledger, 1, core.KindIncome, "salario", 300000, now.AddDate(0, 0, -14))

	s, err := e.WeeklySeries(context.Background(), 1, 8, now)
	if err != nil {
		t.Fatalf("WeeklySeries: %v", err)
	}
	if len(s.Weeks) != 8 || len(s.Expenses) != 8 || len(s.Incomes) != 8 {
		t.Fatalf("lengths = %d/%d/%d, want 8", len(s.Weeks), len(s.Expenses), len(s.Incomes))
	}
	if s.Expenses[7].Cents != 5000 {
		t.Errorf("current week expense = %d, want 5000", s.Expenses[7].Cents)
	}
	if s.Incomes[5].Cents != 300000 {
		t.Errorf("two weeks back income = %d, want 300000", s.Incomes[5].Cents)
	}
}

func TestFormatReportTexts(t *testing.T) {
	loc, _ := time.LoadLocation(core.DefaultTimezone)
	day := time.Date(2026, 3, 11, 0, 0, 0, 0, loc)

	r := Report{
		Today: PeriodSummary{
			Start: day,
			Total: core.Money{Cents: 5000},
			Count: 2,
			Categories: []storage.CategoryTotal{
				{Category: "alimentacao", Total: core.Money{Cents: 3500}, Count: 1},
				{Category: "transporte", Total: core.Money{Cents: 1500}, Count: 1},
			},
		},
		Week: PeriodSummary{Start: day.AddDate(0, 0, -2)},
		Month: Balance{
			MonthStart: time.Date(2026, 3, 1, 0, 0, 0, 0, loc),
			Expense:    core.Money{Cents: 5000},
			Income:     core.Money{Cents: 20000},
		},
	}

	text := FormatReport(r)
	for _, want := range []string{
		"📅 <b>Hoje</b> (11/03)",
		"<b>R$ 50,00</b>  •  2 gasto(s)",
		"🍔 alimentacao: <code>R$ 35,00</code> (1)",
		"🗓 <b>Semana</b> (desde 09/03)",
		"<i>Nenhum gasto na semana</i>",
		"📆 <b>Mês</b> (desde 01/03)",
		"🟢 Saldo: <b>R$ 150,00</b> positivo",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report text missing %q:\n%s", want, text)
		}
	}
}

func TestFormatBalanceNegative(t *testing.T) {
	loc, _ := time.LoadLocation(core.DefaultTimezone)
	b := Balance{
		MonthStart:   time.Date(2026, 3, 1, 0, 0, 0, 0, loc),
		Expense:      core.Money{Cents: 200000},
		ExpenseCount: 4,
		Income:       core.Money{Cents: 150000},
		IncomeCount:  1,
	}

	text := FormatBalance(b)
	for _, want := range []string{
		"📆 <b>Saldo do mês</b> (desde 01/03)",
		"🔴 Saldo: <b>R$ 500,00</b> negativo",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("balance text missing %q:\n%s", want, text)
		}
	}
}

func TestFormatConfirmPromptAndSaved(t *testing.T) {
	c := core.Candidate{
		Amount:   core.Money{Cents: 5000},
		Currency: core.CurrencyBRL,
		Category: "transporte",
		Kind:     core.KindExpense,
	}

	prompt := FormatConfirmPrompt(c)
	for _, want := range []string{"🔴 <b>Gasto detectado</b>", "R$ 50,00", "/confirmar", "/cancelar", "<i>Gasto</i>"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("confirm prompt missing %q:\n%s", want, prompt)
		}
	}

	saved := FormatSaved(core.Entry{
		Amount:      core.Money{Cents: 300000},
		Category:    "salario",
		Description: "salario de marco",
		Kind:        core.KindIncome,
	})
	for _, want := range []string{"🟢 <b>Ganho registrado!</b>", "R$ 3.000,00", "💼 Categoria: <b>salario</b>", "<i>salario de marco</i>"} {
		if !strings.Contains(saved, want) {
			t.Errorf("saved text missing %q:\n%s", want, saved)
		}
	}
}
