package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"grana/internal/log"
)

// sendRetryDelays backs off between Telegram send attempts.
var sendRetryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// safeSend delivers an HTML message, retrying transient failures. A message
// dropped after all attempts is logged, never fatal.
func (b *Bot) safeSend(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	b.sendWithRetry(ctx, chatID, msg)
}

// safeSendPhoto delivers a PNG with caption, same retry policy as safeSend.
func (b *Bot) safeSendPhoto(ctx context.Context, chatID int64, png []byte, caption string) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "grafico.png", Bytes: png})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	b.sendWithRetry(ctx, chatID, photo)
}

func (b *Bot) sendWithRetry(ctx context.Context, chatID int64, c tgbotapi.Chattable) {
	var lastErr error
	for attempt := 0; attempt <= len(sendRetryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(sendRetryDelays[attempt-1]):
			}
		}

		if _, lastErr = b.api.Send(c); lastErr == nil {
			return
		}
		b.logger.WarnContext(ctx, "Send failed",
			log.FieldChatID, chatID,
			"attempt", attempt+1,
			log.FieldError, lastErr)
	}

	b.logger.ErrorContext(ctx, "Dropping message after retries",
		log.FieldChatID, chatID,
		log.FieldError, lastErr)
}
