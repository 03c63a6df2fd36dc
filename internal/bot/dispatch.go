package bot

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"grana/internal/log"
)

const (
	// userQueueSize bounds how many updates one user may have in flight;
	// beyond it updates are dropped, the rate limiter replies anyway.
	userQueueSize = 16

	// userQueueIdle is how long an empty per-user queue lives before its
	// goroutine is reclaimed.
	userQueueIdle = time.Minute
)

// dispatcher fans updates out to one goroutine per active user. Updates from
// the same user are handled strictly in order (text before /confirmar),
// updates from different users run concurrently, so a blocking classifier
// call for one user never delays another.
type dispatcher struct {
	bot *Bot

	mu     sync.Mutex
	queues map[int64]chan tgbotapi.Update
	wg     sync.WaitGroup
}

func newDispatcher(b *Bot) *dispatcher {
	return &dispatcher{
		bot:    b,
		queues: make(map[int64]chan tgbotapi.Update),
	}
}

// dispatch enqueues an update on its user's serial queue, starting a drainer
// goroutine for users without one. Updates with no sender are dropped here,
// matching HandleUpdate's own guard.
func (d *dispatcher) dispatch(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	userID := msg.From.ID

	// The send happens under the lock so a drainer can only retire its
	// queue when the queue is verifiably empty.
	d.mu.Lock()
	q, ok := d.queues[userID]
	if !ok {
		q = make(chan tgbotapi.Update, userQueueSize)
		d.queues[userID] = q
		d.wg.Add(1)
		go d.drain(ctx, userID, q)
	}

	var dropped bool
	select {
	case q <- update:
	default:
		dropped = true
	}
	d.mu.Unlock()

	if dropped {
		d.bot.logger.WarnContext(ctx, "Update queue full, dropping update",
			log.FieldUserID, userID)
	}
}

func (d *dispatcher) drain(ctx context.Context, userID int64, q chan tgbotapi.Update) {
	defer d.wg.Done()

	idle := time.NewTimer(userQueueIdle)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-q:
			d.bot.HandleUpdate(ctx, update)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(userQueueIdle)
		case <-idle.C:
			d.mu.Lock()
			if len(q) == 0 {
				delete(d.queues, userID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			idle.Reset(userQueueIdle)
		}
	}
}

// wait blocks until every drainer goroutine has returned.
func (d *dispatcher) wait() {
	d.wg.Wait()
}
