package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"grana/internal/core"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (f *fakeSender) textsForChat(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

func TestDispatcherIsolatesSlowUsers(t *testing.T) {
	release := make(chan struct{})
	classify := classifyFunc(func(_ context.Context, rawText string) (core.Candidate, error) {
		if strings.Contains(rawText, "demora") {
			<-release
		}
		return core.Candidate{
			RawText:    rawText,
			Amount:     core.Money{Cents: 5000},
			Currency:   core.CurrencyBRL,
			Category:   "transporte",
			Confidence: 0.9,
			Kind:       core.KindExpense,
		}, nil
	})
	tb := newTestBot(t, classify)

	ctx, cancel := context.WithCancel(context.Background())
	d := newDispatcher(tb.bot)

	// User 1 is stuck in classification; user 2 must still get served.
	d.dispatch(ctx, textUpdate(1, 10, "gastei 50, demora"))
	d.dispatch(ctx, textUpdate(2, 20, "gastei 30 no mercado"))

	waitFor(t, "user 2 reply", func() bool {
		return len(tb.api.textsForChat(20)) > 0
	})
	if got := tb.api.textsForChat(10); len(got) != 0 {
		t.Errorf("user 1 replied %v while its classification is still blocked", got)
	}
	if !strings.Contains(tb.api.textsForChat(20)[0], "/confirmar") {
		t.Errorf("user 2 reply = %q, want confirm prompt", tb.api.textsForChat(20)[0])
	}

	close(release)
	waitFor(t, "user 1 reply", func() bool {
		return len(tb.api.textsForChat(10)) > 0
	})

	cancel()
	d.wait()
}

func TestDispatcherKeepsPerUserOrder(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(5000, "transporte"))

	ctx, cancel := context.WithCancel(context.Background())
	d := newDispatcher(tb.bot)

	// Text then confirm on the same queue: the confirm must observe the
	// pending candidate the text produced.
	d.dispatch(ctx, textUpdate(1, 10, "gastei 50 no uber"))
	d.dispatch(ctx, commandUpdate(1, 10, "confirmar"))

	waitFor(t, "persisted entry", func() bool {
		_, err := tb.ledger.LastEntry(context.Background(), 1)
		return err == nil
	})

	last, err := tb.ledger.LastEntry(context.Background(), 1)
	if err != nil {
		t.Fatalf("LastEntry: %v", err)
	}
	if last.Amount.Cents != 5000 {
		t.Errorf("entry = %+v, want 5000 cents", last)
	}

	cancel()
	d.wait()

	texts := tb.api.textsForChat(10)
	if len(texts) != 2 || !strings.Contains(texts[1], "registrado") {
		t.Errorf("texts = %v, want prompt then saved reply", texts)
	}
}

func TestDispatcherDropsUpdatesWithoutSender(t *testing.T) {
	tb := newTestBot(t, expenseClassifier(5000, "transporte"))

	ctx, cancel := context.WithCancel(context.Background())
	d := newDispatcher(tb.bot)

	d.dispatch(ctx, tgbotapi.Update{})
	d.dispatch(ctx, tgbotapi.Update{Message: &tgbotapi.Message{Text: "x"}})

	cancel()
	d.wait()

	if _, err := tb.ledger.LastEntry(context.Background(), 0); err == nil {
		t.Error("senderless update reached the pipeline")
	}
	if got := tb.api.texts(); len(got) != 0 {
		t.Errorf("sent %v, want nothing for senderless updates", got)
	}
}
