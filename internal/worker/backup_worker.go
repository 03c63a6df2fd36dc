// Package worker mirrors confirmed ledger entries to the backup spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"grana/internal/amqp"
	"grana/internal/core"
	"grana/internal/sheets"
	"grana/internal/storage"
)

// Store is the slice of the ledger the worker needs: fetching entries and
// tracking their backup state.
type Store interface {
	GetEntry(ctx context.Context, id int64) (*core.Entry, error)
	PendingBackup(ctx context.Context, limit int) ([]core.Entry, error)
	MarkBackedUp(ctx context.Context, id int64) error
	MarkBackupError(ctx context.Context, id int64) error
}

// BackupWorker consumes ledger events and appends each entry to the backup
// sheet, recording success or failure back in the database.
type BackupWorker struct {
	store     Store
	sheets    sheets.EntryAppender
	batchSize int
}

func NewBackupWorker(store Store, appender sheets.EntryAppender, batchSize int) *BackupWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &BackupWorker{
		store:     store,
		sheets:    appender,
		batchSize: batchSize,
	}
}

// HandleBackupMessage processes a single ledger event from AMQP.
func (w *BackupWorker) HandleBackupMessage(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.InfoContext(ctx, "Processing backup event",
		"entry_id", msg.ID,
		"version", msg.Version)

	entry, err := w.store.GetEntry(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// The entry was removed after the event was published (undo).
		// Returning an error would requeue the message forever.
		slog.WarnContext(ctx, "Entry no longer exists, dropping backup event",
			"entry_id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get entry from storage: %w", err)
	}

	if err := w.backupEntry(ctx, *entry); err != nil {
		return fmt.Errorf("backup entry: %w", err)
	}
	return nil
}

// ProcessPending mirrors entries whose events were lost. Per-entry failures
// are logged and marked, never fatal for the batch.
func (w *BackupWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.PendingBackup(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending entries: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending backups", "count", len(pending))

	for _, entry := range pending {
		if err := w.backupEntry(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to back up entry", "entry_id", entry.ID, "error", err)
		}
	}
	return nil
}

// StartupSweep recovers entries missed while the worker was down. Runs with
// a larger batch than the periodic pass.
func (w *BackupWorker) StartupSweep(ctx context.Context) error {
	pending, err := w.store.PendingBackup(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending entries for startup sweep: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending backups found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending backups on startup", "count", len(pending))

	var synced, failed int
	for _, entry := range pending {
		if err := w.backupEntry(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to back up entry during startup sweep",
				"entry_id", entry.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sweep completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *BackupWorker) backupEntry(ctx context.Context, entry core.Entry) error {
	ref, err := w.sheets.Append(ctx, entry)
	if err != nil {
		if markErr := w.store.MarkBackupError(ctx, entry.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark backup error", "entry_id", entry.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.store.MarkBackedUp(ctx, entry.ID); err != nil {
		// The append succeeded; losing the mark means one extra row on the
		// next sweep, not data loss.
		slog.ErrorContext(ctx, "Failed to mark entry as backed up", "entry_id", entry.ID, "error", err)
	}

	slog.InfoContext(ctx, "Entry backed up",
		"entry_id", entry.ID,
		"sheets_ref", ref,
		"amount_cents", entry.Amount.Cents)
	return nil
}
