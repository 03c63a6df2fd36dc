// Package bot is the Telegram front door: it turns free-text messages into
// confirmed ledger entries and answers the report commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"grana/internal/chart"
	"grana/internal/classifier"
	"grana/internal/core"
	"grana/internal/log"
	"grana/internal/ratelimit"
	"grana/internal/report"
	"grana/internal/session"
	"grana/internal/storage"
)

const listLimit = 10

const (
	chartDays    = 30
	balanceWeeks = 8
)

// Publisher announces saved entries for asynchronous backup. Optional: a nil
// publisher disables backup events without touching the chat flow.
type Publisher interface {
	PublishEntrySaved(ctx context.Context, id, version int64) error
}

// sender is the slice of the Telegram API the handlers need; tests plug in a
// recorder.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Deps struct {
	Classifier classifier.Classifier
	Sessions   *session.Store
	Limiter    *ratelimit.Limiter
	Ledger     storage.Ledger
	Reports    *report.Engine
	Charts     *chart.Renderer
	Publisher  Publisher
	Logger     *log.Logger

	// Allowed decides which Telegram users the bot answers at all.
	Allowed func(userID int64) bool
}

type Bot struct {
	api        sender
	classifier classifier.Classifier
	sessions   *session.Store
	limiter    *ratelimit.Limiter
	ledger     storage.Ledger
	reports    *report.Engine
	charts     *chart.Renderer
	publisher  Publisher
	logger     *log.Logger
	allowed    func(int64) bool
	now        func() time.Time
}

func New(api sender, deps Deps) *Bot {
	return &Bot{
		api:        api,
		classifier: deps.Classifier,
		sessions:   deps.Sessions,
		limiter:    deps.Limiter,
		ledger:     deps.Ledger,
		reports:    deps.Reports,
		charts:     deps.Charts,
		publisher:  deps.Publisher,
		logger:     deps.Logger.WithComponent(log.ComponentBot),
		allowed:    deps.Allowed,
		now:        time.Now,
	}
}

// Run consumes long-poll updates until ctx is cancelled. Updates are handed
// to a dispatcher that serializes per user, so one user's slow classification
// never stalls another's commands.
func (b *Bot) Run(ctx context.Context, api *tgbotapi.BotAPI) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := api.GetUpdatesChan(u)

	b.logger.InfoContext(ctx, "Bot polling for updates", "username", api.Self.UserName)

	d := newDispatcher(b)
	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			d.wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				d.wait()
				return nil
			}
			d.dispatch(ctx, update)
		}
	}
}

// HandleUpdate dispatches one update. Users outside the allowlist are
// ignored silently, commands and free text go their separate ways.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	userID := msg.From.ID
	chatID := msg.Chat.ID

	if b.allowed != nil && !b.allowed(userID) {
		b.logger.Debug("Ignoring message from unknown user", log.FieldUserID, userID)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, userID, chatID, msg.Command())
		return
	}
	b.handleText(ctx, userID, chatID, msg.Text)
}

func (b *Bot) handleCommand(ctx context.Context, userID, chatID int64, command string) {
	b.logger.InfoContext(ctx, "Handling command", log.FieldUserID, userID, log.FieldCommand, command)

	switch command {
	case "start":
		b.safeSend(ctx, chatID, startMessage)
	case "gastos":
		b.sendEntryList(ctx, userID, chatID, core.KindExpense)
	case "ganhos":
		b.sendEntryList(ctx, userID, chatID, core.KindIncome)
	case "relatorio":
		b.sendReport(ctx, userID, chatID, "")
	case "saldo":
		b.sendBalance(ctx, userID, chatID)
	case "grafico":
		b.sendDailyChart(ctx, userID, chatID, "📈 Gastos por dia (30 dias)")
	case "balanco":
		b.sendWeeklyChart(ctx, userID, chatID)
	case "teste23":
		b.sendReport(ctx, userID, chatID, "🧪 <b>Teste do relatório (simulando 23:00)</b>\n\n")
		b.sendDailyChart(ctx, userID, chatID, "📈 Gráfico (30 dias) — teste")
	case "confirmar":
		b.confirmPending(ctx, userID, chatID)
	case "cancelar":
		b.cancelPending(ctx, userID, chatID)
	case "desfazer":
		b.undoLast(ctx, userID, chatID)
	}
}

func (b *Bot) sendEntryList(ctx context.Context, userID, chatID int64, kind core.Kind) {
	entries, err := b.ledger.ListRecent(ctx, userID, kind, listLimit)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to list entries", log.FieldUserID, userID, log.FieldError, err)
		b.safeSend(ctx, chatID, errSomethingBroke)
		return
	}

	if len(entries) == 0 {
		if kind == core.KindIncome {
			b.safeSend(ctx, chatID, "📭 <i>Nenhum ganho registrado ainda.</i>")
		} else {
			b.safeSend(ctx, chatID, "📭 <i>Nenhum gasto registrado ainda.</i>")
		}
		return
	}

	title := "📋 <b>Últimos gastos</b>"
	if kind == core.KindIncome {
		title = "💚 <b>Últimos ganhos</b>"
	}
	b.safeSend(ctx, chatID, report.FormatEntries(title, entries))
}

func (b *Bot) sendReport(ctx context.Context, userID, chatID int64, prefix string) {
	r, err := b.reports.BuildReport(ctx, userID, b.now())
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to build report", log.FieldUserID, userID, log.FieldError, err)
		b.safeSend(ctx, chatID, errSomethingBroke)
		return
	}
	b.safeSend(ctx, chatID, prefix+report.FormatReport(r))
}

func (b *Bot) sendBalance(ctx context.Context, userID, chatID int64) {
	bal, err := b.reports.BuildBalance(ctx, userID, b.now())
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to build balance", log.FieldUserID, userID, log.FieldError, err)
		b.safeSend(ctx, chatID, errSomethingBroke)
		return
	}
	b.safeSend(ctx, chatID, report.FormatBalance(bal))
}

func (b *Bot) sendDailyChart(ctx context.Context, userID, chatID int64, caption string) {
	series, err := b.reports.DailySeries(ctx, userID, core.KindExpense, chartDays, b.now())
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to build daily series", log.FieldUserID, userID, log.FieldError, err)
		b.safeSend(ctx, chatID, errSomethingBroke)
		return
	}
	png, err := b.charts.DailyChart(series)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to render daily chart", log.FieldUserID, userID, log.FieldError, err)
		b.safeSend(ctx, chatID, errSomethingBroke)
		return
	}
	b.safeSendPhoto(ctx, chatID, png, caption)
}

func (b *Bot) sendWeeklyChart(ctx context.Context, userID, chatID int64) {
	series, err := b.reports.WeeklySeries(ctx, userID, balanceWeeks, b.now())
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to build weekly series", log.FieldUserID, userID, log.FieldError, err)
		b.safeSend(ctx, chatID, errSomethingBroke)
		return
	}
	png, err := b.charts.WeeklyChart(series)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to render weekly chart", log.FieldUserID, userID, log.FieldError, err)
		b.safeSend(ctx, chatID, errSomethingBroke)
		return
	}
	b.safeSendPhoto(ctx, chatID, png, "📊 Gastos x Ganhos (8 semanas)")
}

func (b *Bot) confirmPending(ctx context.Context, userID, chatID int64) {
	candidate, err := b.sessions.Take(userID)
	if errors.Is(err, session.ErrNothingPending) {
		b.safeSend(ctx, chatID, "🤷 Nada pendente para confirmar.")
		return
	}

	entry := core.Entry{
		UserID:      userID,
		ChatID:      chatID,
		RawText:     candidate.RawText,
		Amount:      candidate.Amount,
		Currency:    candidate.Currency,
		Category:    candidate.Category,
		Description: candidate.Description,
		Confidence:  candidate.Confidence,
		Kind:        candidate.Kind,
	}

	id, err := b.ledger.Insert(ctx, entry)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to save entry", log.FieldUserID, userID, log.FieldError, err)
		b.safeSend(ctx, chatID, "😵 Não consegui salvar o lançamento. Nada foi registrado, tenta de novo.")
		return
	}
	entry.ID = id

	if b.publisher != nil {
		if err := b.publisher.PublishEntrySaved(ctx, id, 1); err != nil {
			// The backup worker sweeps pending entries, so a lost event is
			// recoverable.
			b.logger.WarnContext(ctx, "Failed to publish backup event",
				log.FieldEntryID, id, log.FieldError, err)
		}
	}

	b.safeSend(ctx, chatID, report.FormatSaved(entry))
}

func (b *Bot) cancelPending(ctx context.Context, userID, chatID int64) {
	if _, err := b.sessions.Take(userID); errors.Is(err, session.ErrNothingPending) {
		b.safeSend(ctx, chatID, "🤷 Nada pendente para cancelar.")
		return
	}
	b.safeSend(ctx, chatID, "🚫 Cancelado. Nada foi registrado.")
}

func (b *Bot) undoLast(ctx context.Context, userID, chatID int64) {
	last, err := b.ledger.LastEntry(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		b.safeSend(ctx, chatID, "📭 Nada para desfazer.")
		return
	}
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to load last entry", log.FieldUserID, userID, log.FieldError, err)
		b.safeSend(ctx, chatID, errSomethingBroke)
		return
	}

	if err := b.ledger.DeleteEntry(ctx, userID, last.ID); err != nil {
		b.logger.ErrorContext(ctx, "Failed to delete entry",
			log.FieldUserID, userID, log.FieldEntryID, last.ID, log.FieldError, err)
		b.safeSend(ctx, chatID, errSomethingBroke)
		return
	}

	b.safeSend(ctx, chatID, fmt.Sprintf("↩️ Removido: <b>%s</b> — %s", last.Amount.FormatBRL(), last.Category))
}

const errSomethingBroke = "😵 Algo deu errado. Tenta de novo em instantes."

const startMessage = "👋 <b>Olá! Eu sou seu bot de finanças.</b>\n" +
	"\n" +
	"Me manda uma frase tipo:\n" +
	"  <code>gastei 50 no uber</code>\n" +
	"  <code>almocei 35 reais</code>\n" +
	"  <code>recebi 3000 de salario</code>\n" +
	"\n" +
	"Depois é só responder /confirmar (ou /cancelar).\n" +
	"\n" +
	"📋 <b>Comandos:</b>\n" +
	"  /gastos — últimos 10 gastos\n" +
	"  /ganhos — últimos 10 ganhos\n" +
	"  /relatorio — resumo hoje + semana\n" +
	"  /saldo — saldo do mês\n" +
	"  /grafico — gráfico de gastos (30 dias)\n" +
	"  /balanco — gráfico gastos x ganhos\n" +
	"  /desfazer — remove o último lançamento"
