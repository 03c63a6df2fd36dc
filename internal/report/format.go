package report

import (
	"fmt"
	"strings"

	"grana/internal/core"
)

// Emoji reply texts are Telegram HTML (parse_mode=HTML), Portuguese,
// matching the tone of the rest of the bot.

// FormatReport renders the today + week summary plus the month balance.
func FormatReport(r Report) string {
	var b strings.Builder

	writePeriod(&b, fmt.Sprintf("📅 <b>Hoje</b> (%s)", r.Today.Start.Format("02/01")), r.Today, "Nenhum gasto hoje")
	b.WriteString("\n─────────────────────\n\n")
	writePeriod(&b, fmt.Sprintf("🗓 <b>Semana</b> (desde %s)", r.Week.Start.Format("02/01")), r.Week, "Nenhum gasto na semana")
	b.WriteString("\n─────────────────────\n\n")

	icon, label := netBadge(r.Month.Net())
	fmt.Fprintf(&b, "📆 <b>Mês</b> (desde %s)\n", r.Month.MonthStart.Format("02/01"))
	fmt.Fprintf(&b, "    🟢 Ganhos: <b>%s</b>\n", r.Month.Income.FormatBRL())
	fmt.Fprintf(&b, "    🔴 Gastos: <b>%s</b>\n", r.Month.Expense.FormatBRL())
	fmt.Fprintf(&b, "    %s Saldo: <b>%s</b> %s\n", icon, r.Month.Net().Abs().FormatBRL(), label)

	return strings.TrimRight(b.String(), "\n")
}

func writePeriod(b *strings.Builder, header string, s PeriodSummary, empty string) {
	b.WriteString(header + "\n")
	fmt.Fprintf(b, "    💰 Total: <b>%s</b>  •  %d gasto(s)\n", s.Total.FormatBRL(), s.Count)
	fmt.Fprintf(b, "    🟢 Ganhos: <b>%s</b>\n\n", s.Income.FormatBRL())
	if len(s.Categories) == 0 {
		fmt.Fprintf(b, "    <i>%s</i>\n", empty)
		return
	}
	for _, c := range s.Categories {
		fmt.Fprintf(b, "    %s %s: <code>%s</code> (%d)\n", categoryEmoji(c.Category), c.Category, c.Total.FormatBRL(), c.Count)
	}
}

func netBadge(net core.Money) (icon, label string) {
	if net.IsNegative() {
		return "🔴", "negativo"
	}
	return "🟢", "positivo"
}

// FormatBalance renders the month income vs expense summary.
func FormatBalance(b Balance) string {
	net := b.Net()
	icon, label := netBadge(net)

	var sb strings.Builder
	fmt.Fprintf(&sb, "📆 <b>Saldo do mês</b> (desde %s)\n\n", b.MonthStart.Format("02/01"))
	fmt.Fprintf(&sb, "🟢 Ganhos: <b>%s</b>  (%d registro(s))\n", b.Income.FormatBRL(), b.IncomeCount)
	fmt.Fprintf(&sb, "🔴 Gastos: <b>%s</b>  (%d registro(s))\n", b.Expense.FormatBRL(), b.ExpenseCount)
	sb.WriteString("\n─────────────────────\n\n")
	fmt.Fprintf(&sb, "%s Saldo: <b>%s</b> %s", icon, net.Abs().FormatBRL(), label)
	return sb.String()
}

// FormatEntries renders a numbered listing for /gastos and /ganhos.
func FormatEntries(title string, entries []core.Entry) string {
	var sb strings.Builder
	sb.WriteString(title + "\n")
	for i, e := range entries {
		desc := strings.TrimSpace(e.Description)
		if desc == "" {
			desc = defaultDescription(e.Kind)
		}
		fmt.Fprintf(&sb, "\n%d. %s <b>%s</b> — %s\n", i+1, categoryEmoji(e.Category), e.Amount.FormatBRL(), e.Category)
		fmt.Fprintf(&sb, "     <i>%s</i>\n", desc)
		fmt.Fprintf(&sb, "     🕐 <code>%s</code>\n", e.CreatedAt.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatSaved renders the confirmation reply after an entry is persisted.
func FormatSaved(e core.Entry) string {
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		desc = defaultDescription(e.Kind)
	}

	header := "🔴 <b>Gasto registrado!</b>"
	if e.Kind == core.KindIncome {
		header = "🟢 <b>Ganho registrado!</b>"
	}

	return fmt.Sprintf("%s\n\n💰 Valor: <b>%s</b>\n%s Categoria: <b>%s</b>\n📝 Descrição: <i>%s</i>",
		header, e.Amount.FormatBRL(), categoryEmoji(e.Category), e.Category, desc)
}

// FormatConfirmPrompt asks the user to confirm a classified candidate before
// anything is written.
func FormatConfirmPrompt(c core.Candidate) string {
	desc := strings.TrimSpace(c.Description)
	if desc == "" {
		desc = defaultDescription(c.Kind)
	}

	header := "🔴 <b>Gasto detectado</b>"
	if c.Kind == core.KindIncome {
		header = "🟢 <b>Ganho detectado</b>"
	}

	return fmt.Sprintf("%s\n\n💰 Valor: <b>%s</b>\n%s Categoria: <b>%s</b>\n📝 Descrição: <i>%s</i>\n\nConfirma? /confirmar ou /cancelar",
		header, c.Amount.FormatBRL(), categoryEmoji(c.Category), c.Category, desc)
}

// FormatUnintelligible is the reply when the classifier cannot find an
// amount in the message.
func FormatUnintelligible() string {
	return "😅 <b>Não entendi</b>\n\n" +
		"Tenta algo como:\n" +
		"  <code>gastei 50 no uber</code>\n" +
		"  <code>recebi 3000 de salario</code>"
}

func defaultDescription(k core.Kind) string {
	if k == core.KindIncome {
		return "Ganho"
	}
	return "Gasto"
}

func categoryEmoji(cat string) string {
	if e, ok := core.CategoryEmoji[cat]; ok {
		return e
	}
	return core.CategoryEmoji[core.CategoryFallback]
}
