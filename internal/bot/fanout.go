package bot

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"grana/internal/core"
	"grana/internal/log"
	"grana/internal/report"
)

// fanoutConcurrency bounds parallel deliveries so a big user base does not
// burst the Telegram API.
const fanoutConcurrency = 4

// SendScheduledReports delivers the automatic report to every active user
// with a known chat. One user's failure never blocks the others.
func (b *Bot) SendScheduledReports(ctx context.Context) error {
	users, err := b.ledger.ActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}

	b.logger.InfoContext(ctx, "Sending scheduled reports", "users", len(users))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fanoutConcurrency)

	for _, u := range users {
		if u.ChatID == 0 {
			b.logger.WarnContext(ctx, "User has no deliverable chat, skipping",
				log.FieldUserID, u.UserID)
			continue
		}

		user := u
		g.Go(func() error {
			b.deliverScheduledReport(ctx, user)
			return nil
		})
	}
	return g.Wait()
}

func (b *Bot) deliverScheduledReport(ctx context.Context, user core.ActiveUser) {
	r, err := b.reports.BuildReport(ctx, user.UserID, b.now())
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to build scheduled report",
			log.FieldUserID, user.UserID, log.FieldError, err)
		return
	}

	b.safeSend(ctx, user.ChatID, "🕚 <b>Relatório automático (23:00)</b>\n\n"+report.FormatReport(r))

	series, err := b.reports.DailySeries(ctx, user.UserID, core.KindExpense, chartDays, b.now())
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to build scheduled series",
			log.FieldUserID, user.UserID, log.FieldError, err)
		return
	}
	png, err := b.charts.DailyChart(series)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to render scheduled chart",
			log.FieldUserID, user.UserID, log.FieldError, err)
		return
	}
	b.safeSendPhoto(ctx, user.ChatID, png, "📈 Gráfico (30 dias)")
}
