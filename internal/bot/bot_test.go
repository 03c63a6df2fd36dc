package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
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

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeSender) photos() []tgbotapi.PhotoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeSender) lastText(t *testing.T) string {
	t.Helper()
	texts := f.texts()
	if len(texts) == 0 {
		t.Fatal("no messages sent")
	}
	return texts[len(texts)-1]
}

type classifyFunc func(ctx context.Context, rawText string) (core.Candidate, error)

func (f classifyFunc) Classify(ctx context.Context, rawText string) (core.Candidate, error) {
	return f(ctx, rawText)
}

type fakePublisher struct {
	mu  sync.Mutex
	ids []int64
}

func (p *fakePublisher) PublishEntrySaved(_ context.Context, id, _ int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return nil
}

func expenseClassifier(cents int64, category string) classifyFunc {
	return func(_ context.Context, rawText string) (core.Candidate, error) {
		return core.Candidate{
			RawText:    rawText,
			Amount:     core.Money{Cents: cents},
			Currency:   core.CurrencyBRL,
			Category:   category,
			Confidence: 0.9,
			Kind:       core.KindExpense,
		}, nil
	}
}

type testBot struct {
	bot    *Bot
	api    *fakeSender
	ledger *storage.MemoryLedger
	pub    *fakePublisher
}

func newTestBot(t *testing.T, classify classifier.Classifier) *testBot {
	t.Helper()

	loc, err := time.LoadLocation(core.DefaultTimezone)
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	api := &fakeSender{}
	ledger := storage.NewMemoryLedger()
	pub := &fakePublisher{}
	sessions := session.NewStore(time.Minute)
	limiter := ratelimit.NewLimiter(ratelimit.Config{Messages: 5, Window: time.Minute})
	t.Cleanup(func() {
		sessions.Stop()
		limiter.Stop()
	})

	b := New(api, Deps{
		Classifier: classify,
		Sessions:   sessions,
		Limiter:    limiter,
		Ledger:     ledger,
		Reports:    report.NewEngine(ledger, loc, report.DefaultOutlierRatio),
		Charts:     chart.NewRenderer(),
		Publisher:  pub,
		Logger:     log.New(log.DefaultConfig()),
		Allowed:    func(userID int64) bool { return userID != 666 },
	})
	return &testBot{bot: b, api: api, ledger: ledger, pub: pub}
}

func textUpdate(userID, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}}
}

func commandUpdate(userID, chatID int64, command string) tgbotapi.Update {
	u := textUpdate(userID, chatID, "/"+command)
	u.Message.Entities = []tgbotapi.MessageEntity{
		{Type: "bot_command", Offset: 0, Length: len(command) + 1},
	}
	return u
}

func TestConfirmFlowPersistsOnlyAfterConfirm(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(5000, "transporte"))
	ctx := context.Background()

	tb.bot.HandleUpdate(ctx, textUpdate(1, 10, "gastei 50 no uber"))

	if !strings.Contains(tb.api.lastText(t), "/confirmar") {
		t.Errorf("expected confirm prompt, got %q", tb.api.lastText(t))
	}
	if _, err := tb.ledger.LastEntry(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("entry persisted before confirmation: %v", err)
	}

	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "confirmar"))

	last, err := tb.ledger.LastEntry(ctx, 1)
	if err != nil {
		t.Fatalf("LastEntry after confirm: %v", err)
	}
	if last.Amount.Cents != 5000 || last.Category != "transporte" || last.ChatID != 10 {
		t.Errorf("entry = %+v, want 5000 cents transporte chat 10", last)
	}
	if !strings.Contains(tb.api.lastText(t), "Gasto registrado!") {
		t.Errorf("expected saved reply, got %q", tb.api.lastText(t))
	}
	if len(tb.pub.ids) != 1 || tb.pub.ids[0] != last.ID {
		t.Errorf("published ids = %v, want [%d]", tb.pub.ids, last.ID)
	}
}

func TestCancelDiscardsPending(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(5000, "transporte"))
	ctx := context.Background()

	tb.bot.HandleUpdate(ctx, textUpdate(1, 10, "gastei 50 no uber"))
	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "cancelar"))

	if !strings.Contains(tb.api.lastText(t), "Cancelado") {
		t.Errorf("expected cancel reply, got %q", tb.api.lastText(t))
	}

	// The candidate is gone: confirm now finds nothing.
	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "confirmar"))
	if !strings.Contains(tb.api.lastText(t), "Nada pendente") {
		t.Errorf("expected nothing-pending reply, got %q", tb.api.lastText(t))
	}
	if _, err := tb.ledger.LastEntry(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("entry persisted after cancel: %v", err)
	}
}

func TestConfirmWithoutPending(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(5000, "transporte"))

	tb.bot.HandleUpdate(context.Background(), commandUpdate(1, 10, "confirmar"))
	if !strings.Contains(tb.api.lastText(t), "Nada pendente") {
		t.Errorf("got %q", tb.api.lastText(t))
	}
}

func TestNewMessageSupersedesPending(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(5000, "transporte"))
	ctx := context.Background()

	tb.bot.HandleUpdate(ctx, textUpdate(1, 10, "gastei 50 no uber"))
	tb.bot.HandleUpdate(ctx, textUpdate(1, 10, "gastei 50 no mercado"))

	if !strings.Contains(tb.api.lastText(t), "Substituindo") {
		t.Errorf("expected supersede note, got %q", tb.api.lastText(t))
	}
}

func TestRateLimitReply(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(5000, "transporte"))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tb.bot.HandleUpdate(ctx, textUpdate(1, 10, "gastei 50 no uber"))
	}
	tb.bot.HandleUpdate(ctx, textUpdate(1, 10, "gastei 50 no uber"))

	if !strings.Contains(tb.api.lastText(t), "Limite de mensagens") {
		t.Errorf("expected rate limit reply, got %q", tb.api.lastText(t))
	}
}

func TestTooLongMessage(t *testing.T) {
	called := false
	tb := newTestBot(t, classifyFunc(func(ctx context.Context, rawText string) (core.Candidate, error) {
		called = true
		return core.Candidate{}, nil
	}))

	tb.bot.HandleUpdate(context.Background(), textUpdate(1, 10, strings.Repeat("a", core.MaxTextLength+1)))

	if called {
		t.Error("classifier should not run for oversized messages")
	}
	if !strings.Contains(tb.api.lastText(t), "Mensagem muito longa") {
		t.Errorf("got %q", tb.api.lastText(t))
	}
}

func TestUnintelligibleReply(t *testing.T) {
	tb := newTestBot(t, classifyFunc(func(context.Context, string) (core.Candidate, error) {
		return core.Candidate{}, classifier.ErrUnintelligible
	}))

	tb.bot.HandleUpdate(context.Background(), textUpdate(1, 10, "bom dia"))
	if !strings.Contains(tb.api.lastText(t), "Não entendi") {
		t.Errorf("got %q", tb.api.lastText(t))
	}
}

func TestClassifierUnavailableReply(t *testing.T) {
	tb := newTestBot(t, classifyFunc(func(context.Context, string) (core.Candidate, error) {
		return core.Candidate{}, classifier.ErrUnavailable
	}))

	tb.bot.HandleUpdate(context.Background(), textUpdate(1, 10, "gastei 50 no uber"))
	if !strings.Contains(tb.api.lastText(t), "fora do ar") {
		t.Errorf("got %q", tb.api.lastText(t))
	}
}

func TestInvalidCandidateTreatedAsUnintelligible(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(core.MaxAmountCents+1, "outros"))

	tb.bot.HandleUpdate(context.Background(), textUpdate(1, 10, "gastei dois milhoes"))
	if !strings.Contains(tb.api.lastText(t), "Não entendi") {
		t.Errorf("got %q", tb.api.lastText(t))
	}
}

func TestDisallowedUserIgnored(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(5000, "transporte"))

	tb.bot.HandleUpdate(context.Background(), textUpdate(666, 10, "gastei 50 no uber"))
	tb.bot.HandleUpdate(context.Background(), commandUpdate(666, 10, "relatorio"))

	if len(tb.api.texts()) != 0 {
		t.Errorf("sent %v, want silence for disallowed users", tb.api.texts())
	}
}

func TestUndoRemovesLastEntry(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(5000, "transporte"))
	ctx := context.Background()

	tb.bot.HandleUpdate(ctx, textUpdate(1, 10, "gastei 50 no uber"))
	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "confirmar"))
	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "desfazer"))

	if !strings.Contains(tb.api.lastText(t), "Removido") {
		t.Errorf("got %q", tb.api.lastText(t))
	}
	if _, err := tb.ledger.LastEntry(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("entry still present after undo: %v", err)
	}

	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "desfazer"))
	if !strings.Contains(tb.api.lastText(t), "Nada para desfazer") {
		t.Errorf("got %q", tb.api.lastText(t))
	}
}

func TestEmptyListReplies(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(5000, "transporte"))
	ctx := context.Background()

	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "gastos"))
	if !strings.Contains(tb.api.lastText(t), "Nenhum gasto registrado") {
		t.Errorf("got %q", tb.api.lastText(t))
	}

	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "ganhos"))
	if !strings.Contains(tb.api.lastText(t), "Nenhum ganho registrado") {
		t.Errorf("got %q", tb.api.lastText(t))
	}
}

type failingInsertLedger struct {
	storage.Ledger
}

func (f *failingInsertLedger) Insert(context.Context, core.Entry) (int64, error) {
	return 0, storage.ErrWriteFailed
}

func TestConfirmSurfacesStorageFailure(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(5000, "transporte"))
	tb.bot.ledger = &failingInsertLedger{Ledger: tb.ledger}
	ctx := context.Background()

	tb.bot.HandleUpdate(ctx, textUpdate(1, 10, "gastei 50 no uber"))
	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "confirmar"))

	if !strings.Contains(tb.api.lastText(t), "Não consegui salvar") {
		t.Errorf("expected save failure reply, got %q", tb.api.lastText(t))
	}
	if len(tb.pub.ids) != 0 {
		t.Errorf("published %v despite failed insert", tb.pub.ids)
	}
}

func TestReportAndChartsCommands(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(5000, "transporte"))
	ctx := context.Background()

	tb.bot.HandleUpdate(ctx, textUpdate(1, 10, "gastei 50 no uber"))
	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "confirmar"))

	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "relatorio"))
	if !strings.Contains(tb.api.lastText(t), "Hoje") {
		t.Errorf("report reply = %q", tb.api.lastText(t))
	}

	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "saldo"))
	if !strings.Contains(tb.api.lastText(t), "Saldo do mês") {
		t.Errorf("balance reply = %q", tb.api.lastText(t))
	}

	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "grafico"))
	tb.bot.HandleUpdate(ctx, commandUpdate(1, 10, "balanco"))
	if got := len(tb.api.photos()); got != 2 {
		t.Errorf("photos sent = %d, want 2", got)
	}
}

func TestScheduledFanoutSkipsUsersWithoutChat(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(5000, "transporte"))
	ctx := context.Background()

	now := time.Now()
	for _, e := range []core.Entry{
		{UserID: 1, ChatID: 10, RawText: "x", Amount: core.Money{Cents: 1000}, Currency: core.CurrencyBRL, Category: "casa", Kind: core.KindExpense, CreatedAt: now},
		{UserID: 2, ChatID: 0, RawText: "x", Amount: core.Money{Cents: 2000}, Currency: core.CurrencyBRL, Category: "casa", Kind: core.KindExpense, CreatedAt: now},
	} {
		if _, err := tb.ledger.Insert(ctx, e); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	if err := tb.bot.SendScheduledReports(ctx); err != nil {
		t.Fatalf("SendScheduledReports: %v", err)
	}

	texts := tb.api.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Relatório automático") {
		t.Errorf("texts = %v, want one automatic report", texts)
	}
	if got := len(tb.api.photos()); got != 1 {
		t.Errorf("photos = %d, want 1", got)
	}
	for _, c := range tb.api.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID != 10 {
			t.Errorf("message sent to chat %d, want only chat 10", m.ChatID)
		}
	}
}
