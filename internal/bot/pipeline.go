package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"grana/internal/classifier"
	"grana/internal/core"
	"grana/internal/log"
	"grana/internal/report"
)

// handleText runs the classification pipeline: rate limit, length check,
// classify, validate, then park the candidate until /confirmar. Nothing is
// written here.
func (b *Bot) handleText(ctx context.Context, userID, chatID int64, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if !b.limiter.Allow(userID) {
		b.logger.InfoContext(ctx, "Rate limit hit", log.FieldUserID, userID)
		b.safeSend(ctx, chatID, "⏳ Calma! Limite de mensagens atingido. Tente novamente em alguns segundos.")
		return
	}

	if n := utf8.RuneCountInString(text); n > core.MaxTextLength {
		b.safeSend(ctx, chatID, fmt.Sprintf("Mensagem muito longa (%d chars). Máximo: %d.", n, core.MaxTextLength))
		return
	}

	candidate, err := b.classifier.Classify(ctx, text)
	switch {
	case errors.Is(err, classifier.ErrUnintelligible):
		b.safeSend(ctx, chatID, report.FormatUnintelligible())
		return
	case errors.Is(err, classifier.ErrUnavailable):
		b.logger.WarnContext(ctx, "Classifier unavailable", log.FieldUserID, userID, log.FieldError, err)
		b.safeSend(ctx, chatID, "😵 O classificador está fora do ar. Tenta de novo em instantes.")
		return
	case err != nil:
		b.logger.ErrorContext(ctx, "Classification failed", log.FieldUserID, userID, log.FieldError, err)
		b.safeSend(ctx, chatID, errSomethingBroke)
		return
	}

	candidate.RawText = text
	if err := candidate.Validate(); err != nil {
		b.logger.InfoContext(ctx, "Candidate rejected",
			log.FieldUserID, userID,
			log.FieldAmountCents, candidate.Amount.Cents,
			log.FieldError, err)
		b.safeSend(ctx, chatID, report.FormatUnintelligible())
		return
	}

	superseded := b.sessions.Put(userID, candidate)

	b.logger.InfoContext(ctx, "Candidate pending confirmation",
		log.FieldUserID, userID,
		log.FieldKind, candidate.Kind,
		log.FieldCategory, candidate.Category,
		log.FieldAmountCents, candidate.Amount.Cents,
		log.FieldConfidence, candidate.Confidence)

	prompt := report.FormatConfirmPrompt(candidate)
	if superseded {
		prompt = "♻️ Substituindo o lançamento pendente anterior.\n\n" + prompt
	}
	b.safeSend(ctx, chatID, prompt)
}
